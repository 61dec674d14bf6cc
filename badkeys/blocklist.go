package badkeys

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"path"
	"sort"
)

// Each block is a sha256 prefix followed by the repository id
const BlockLength = 16
const BlockHashPrefix = 15

type Meta struct {
	BKFormat        int    `json:"bkformat,omitempty"`
	Date            string `json:"date,omitempty"`
	BlocklistURL    string `json:"blocklist_url,omitempty"`
	BlocklistSHA256 string `json:"blocklist_sha256,omitempty"`
	LookupURL       string `json:"lookup_url,omitempty"`
	LookupSHA256    string `json:"lookup_sha256,omitempty"`
	Blocklists      []Repo `json:"blocklists,omitempty"`
}

type Repo struct {
	ID   int    `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
	Repo string `json:"repo,omitempty"`
	Path string `json:"path,omitempty"`
}

type Repos map[int]Repo

type Blocklist struct {
	Meta          *Meta
	Blocks        []byte
	Repos         Repos
	LookupMap     map[uint64][]int
	LookupStrings []string
}

func NewBlocklist() *Blocklist {
	return &Blocklist{
		LookupMap: make(map[uint64][]int),
		Repos:     make(Repos),
	}
}

// Date returns the publication date of the loaded blocklist
func (bl *Blocklist) Date() string {
	if bl.Meta == nil {
		return ""
	}
	return bl.Meta.Date
}

// FindBlock binary searches the sorted blocks for the given hash prefix
func (bl *Blocklist) FindBlock(k []byte) ([]byte, error) {
	cnt := len(bl.Blocks) / BlockLength
	i := sort.Search(cnt, func(i int) bool {
		off := i * BlockLength
		return bytes.Compare(bl.Blocks[off:off+BlockHashPrefix], k) >= 0
	})
	off := i * BlockLength
	if i < cnt && bytes.Equal(bl.Blocks[off:off+BlockHashPrefix], k) {
		return bl.Blocks[off : off+BlockLength], nil
	}
	return nil, ErrNotFound
}

func (bl *Blocklist) LookupPrefix(sum []byte) (*Result, error) {
	if len(sum) < BlockHashPrefix {
		return nil, fmt.Errorf("prefix too short: %d", len(sum))
	}
	block, err := bl.FindBlock(sum[0:BlockHashPrefix])
	if err != nil {
		return nil, err
	}
	repo, ok := bl.Repos[int(block[BlockHashPrefix])]
	if !ok {
		return nil, fmt.Errorf("repo %d is missing", block[BlockHashPrefix])
	}
	info, ok := bl.LookupMap[binary.BigEndian.Uint64(block[:8])]
	if !ok {
		return nil, fmt.Errorf("lookup %x is missing", block[:8])
	}
	parts := make([]string, len(info))
	for i, lk := range info {
		parts[i] = bl.LookupStrings[lk]
	}

	return &Result{
		Repo:     repo.Repo,
		RepoID:   int8(repo.ID),
		RepoType: repo.Type,
		RepoPath: repo.Path,
		RepoName: repo.Name,
		KeyPath:  path.Join(parts...),
		Private:  repo.Repo == "",
		ListDate: bl.Date(),
	}, nil
}

// LookupModulus checks an RSA modulus against the blocklist
func (bl *Blocklist) LookupModulus(modulus []byte) (*Result, error) {
	return bl.LookupPrefix(PrefixFromModulus(modulus))
}
