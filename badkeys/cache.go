package badkeys

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/runZeroInc/excrypto/crypto/sha256"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
)

const MaxLookupLine = 4096
const MaxResponseSize = 1024 * 1024 * 512 // Adjust if the block list becomes larger
const CacheFileMetadata = "badkeysdata.json"
const CacheFileBlocklist = "blocklist.dat"
const CacheFileLookup = "lookup.txt"
const HTTPDataDownloadTimeout = time.Hour
const HTTPMetaDownloadTimeout = time.Second * 30

// Cache keeps a local copy of the badkeys blocklist
type Cache struct {
	sync.Mutex
	MetaURL   string
	Client    *http.Client
	blocklist *Blocklist
	loadError error
	cacheDir  string
	lgr       *logrus.Logger
}

func NewCache(lgr *logrus.Logger) *Cache {
	return &Cache{MetaURL: BadKeysMetaURL, lgr: lgr}
}

// LoadBlocklist loads the blocklist from disk once and returns the cached result
func (cache *Cache) LoadBlocklist() (*Blocklist, error) {
	cache.Lock()
	defer cache.Unlock()
	if cache.blocklist != nil || cache.loadError != nil {
		return cache.blocklist, cache.loadError
	}
	cache.blocklist, cache.loadError = cache.loadBlocklistFromDisk()
	return cache.blocklist, cache.loadError
}

// Check looks up the modulus in the cached blocklist. A nil result with a
// nil error means the key is not listed.
func (cache *Cache) Check(modulus []byte) (*Result, error) {
	bl, err := cache.LoadBlocklist()
	if err != nil {
		return nil, err
	}
	res, err := bl.LookupModulus(modulus)
	if err == ErrNotFound {
		return nil, nil
	}
	return res, err
}

func (cache *Cache) loadBlocklistFromDisk() (*Blocklist, error) {
	bl := NewBlocklist()

	meta, err := cache.CurrentMetadata()
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	bl.Meta = meta
	for _, repo := range meta.Blocklists {
		bl.Repos[repo.ID] = repo
	}

	rdr, err := cache.OpenFile(CacheFileBlocklist)
	if err != nil {
		return nil, fmt.Errorf("blocklist open: %w", err)
	}
	buff, err := io.ReadAll(rdr)
	_ = rdr.Close()
	if err != nil {
		return nil, fmt.Errorf("blocklist: %w", err)
	}
	if len(buff)%BlockLength != 0 {
		return nil, fmt.Errorf("blocklist: size %d is not a multiple of %d", len(buff), BlockLength)
	}
	bl.Blocks = buff

	rdr, err = cache.OpenFile(CacheFileLookup)
	if err != nil {
		return nil, fmt.Errorf("lookup open: %w", err)
	}
	defer rdr.Close()
	if err := cache.readLookup(bl, rdr); err != nil {
		return nil, fmt.Errorf("lookup: %w", err)
	}
	return bl, nil
}

// readLookup parses "<hex id>;<dir>/<dir>/<file>" lines, interning path components
func (cache *Cache) readLookup(bl *Blocklist, r io.Reader) error {
	smap := make(map[string]int)

	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, MaxLookupLine), MaxLookupLine)
	for scan.Scan() {
		kid, kpath, ok := strings.Cut(scan.Text(), ";")
		if !ok {
			continue
		}
		kint, err := strconv.ParseUint(kid, 16, 64)
		if err != nil {
			cache.lgr.Errorf("invalid key id %s: %v", kid, err)
			continue
		}
		bits := strings.Split(kpath, "/")
		lset := make([]int, len(bits))
		for i, kdir := range bits {
			sid, found := smap[kdir]
			if !found {
				sid = len(smap)
				smap[kdir] = sid
			}
			lset[i] = sid
		}
		bl.LookupMap[kint] = lset
	}
	if err := scan.Err(); err != nil {
		return err
	}

	bl.LookupStrings = make([]string, len(smap))
	for k, i := range smap {
		bl.LookupStrings[i] = k
	}
	return nil
}

// SetCacheDir sets the location of the badkeys block tables
func (cache *Cache) SetCacheDir(s string) {
	cache.cacheDir = s
}

// GetCacheDir returns the location of the badkeys block tables
func (cache *Cache) GetCacheDir() string {
	if cache.cacheDir != "" {
		return cache.cacheDir
	}

	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		base = filepath.Join(GetExecutableDir(), ".cache")
	}
	cache.cacheDir = filepath.Join(base, "badkeys")
	return cache.cacheDir
}

// OpenFile returns a reader for the given cache file name
func (cache *Cache) OpenFile(path string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(cache.GetCacheDir(), filepath.Base(path)))
}

// CreateFile returns a writer for the given cache file name
func (cache *Cache) CreateFile(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(cache.GetCacheDir(), 0o755); err != nil {
		return nil, err
	}
	return os.Create(filepath.Join(cache.GetCacheDir(), filepath.Base(path)))
}

// RemoveFile deletes a file from the cache
func (cache *Cache) RemoveFile(path string) error {
	return os.Remove(filepath.Join(cache.GetCacheDir(), filepath.Base(path)))
}

// RenameFile replaces one file with another in the cache
func (cache *Cache) RenameFile(src string, dst string) error {
	_ = os.Remove(filepath.Join(cache.GetCacheDir(), filepath.Base(dst)))
	return os.Rename(
		filepath.Join(cache.GetCacheDir(), filepath.Base(src)),
		filepath.Join(cache.GetCacheDir(), filepath.Base(dst)),
	)
}

func (cache *Cache) CurrentMetadata() (*Meta, error) {
	rdr, err := cache.OpenFile(CacheFileMetadata)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()
	return ReadBadKeysManifest(rdr)
}

func validURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// Update refreshes the local copy when the published date changes and returns
// the previous and current dates.
func (cache *Cache) Update(ctx context.Context) (string, string, error) {
	var pre, cur string

	// The metadata carries the repo IDs and the blocklist & lookup URLs
	body, err := cache.httpGetData(ctx, cache.MetaURL, HTTPMetaDownloadTimeout)
	if err != nil {
		return pre, cur, fmt.Errorf("failed to retrieve %s: %w", cache.MetaURL, err)
	}
	meta := &Meta{}
	if err := json.Unmarshal(body, meta); err != nil {
		return pre, cur, fmt.Errorf("failed to decode %s: %w", cache.MetaURL, err)
	}
	cur = meta.Date

	if !validURL(meta.BlocklistURL) {
		return pre, cur, fmt.Errorf("bad blocklist url %q", meta.BlocklistURL)
	}
	if !validURL(meta.LookupURL) {
		return pre, cur, fmt.Errorf("bad lookup url %q", meta.LookupURL)
	}

	if oldMeta, err := cache.CurrentMetadata(); err == nil {
		pre = oldMeta.Date
		if oldMeta.Date == meta.Date {
			cache.lgr.Debugf("badkeys cache is current (%s)", pre)
			return pre, cur, nil
		}
	}

	// Temporary files are removed on early exit
	tmpFiles := []string{}
	defer func() {
		for _, path := range tmpFiles {
			_ = cache.RemoveFile(path)
		}
	}()

	tmpMeta := CacheFileMetadata + ".tmp"
	w, err := cache.CreateFile(tmpMeta)
	if err != nil {
		return pre, cur, fmt.Errorf("failed to create metadata %s: %w", tmpMeta, err)
	}
	tmpFiles = append(tmpFiles, tmpMeta)
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return pre, cur, fmt.Errorf("failed to write metadata %s: %w", tmpMeta, err)
	}
	if err := w.Close(); err != nil {
		return pre, cur, fmt.Errorf("failed to close metadata %s: %w", tmpMeta, err)
	}

	tmpBlocklist := CacheFileBlocklist + ".tmp"
	tmpFiles = append(tmpFiles, tmpBlocklist)
	if err := cache.DownloadAndValidateXZ(ctx, meta.BlocklistURL, meta.BlocklistSHA256, tmpBlocklist); err != nil {
		return pre, cur, err
	}

	tmpLookup := CacheFileLookup + ".tmp"
	tmpFiles = append(tmpFiles, tmpLookup)
	if err := cache.DownloadAndValidateXZ(ctx, meta.LookupURL, meta.LookupSHA256, tmpLookup); err != nil {
		return pre, cur, err
	}

	for src, dst := range map[string]string{
		tmpBlocklist: CacheFileBlocklist,
		tmpLookup:    CacheFileLookup,
	} {
		if err := cache.RenameFile(src, dst); err != nil {
			return pre, cur, err
		}
	}
	// Metadata goes last so a partial update is never treated as current
	if err := cache.RenameFile(tmpMeta, CacheFileMetadata); err != nil {
		return pre, cur, err
	}

	cache.Lock()
	cache.blocklist, cache.loadError = nil, nil
	cache.Unlock()
	return pre, cur, nil
}

// DownloadAndValidateXZ stores the decompressed body of u in the cache after
// checking the sha256 of the decompressed data against hash.
func (cache *Cache) DownloadAndValidateXZ(ctx context.Context, u string, hash string, path string) error {
	res, cancel, err := cache.httpGet(ctx, u, HTTPDataDownloadTimeout)
	defer cancel()
	if err != nil {
		return fmt.Errorf("download failed for %s: %w", path, err)
	}
	defer res.Body.Close()

	bodyHashExp, err := hex.DecodeString(hash)
	if err != nil {
		return fmt.Errorf("bad sha256 for %s in metadata: %w", path, err)
	}

	w, err := cache.CreateFile(path)
	if err != nil {
		return fmt.Errorf("create failed for %s: %w", path, err)
	}
	cleanup := func() {
		_ = w.Close()
		_ = cache.RemoveFile(path)
	}

	h := sha256.New()
	r, err := xz.NewReader(res.Body)
	if err != nil {
		cleanup()
		return fmt.Errorf("xz read failed for %s: %w", path, err)
	}
	if _, err = io.Copy(io.MultiWriter(w, h), r); err != nil {
		cleanup()
		return fmt.Errorf("read failed for %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		_ = cache.RemoveFile(path)
		return fmt.Errorf("write failed for %s: %w", path, err)
	}

	bodyHashGot := h.Sum(nil)
	if !bytes.Equal(bodyHashExp, bodyHashGot) {
		_ = cache.RemoveFile(path)
		return fmt.Errorf("bad sha256 for %s, expected %s and got %s", path, hash, hex.EncodeToString(bodyHashGot))
	}
	return nil
}
