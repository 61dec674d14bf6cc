package cmd

import (
	"github.com/runZeroInc/rsapem/badkeys"
	"github.com/spf13/cobra"
)

// badkeysCmd refreshes the local blocklist used by convert --check-badkeys
var badkeysCmd = &cobra.Command{
	Use:   "badkeys-update",
	Short: "Updates the badkeys.info blocklist cache.",
	Long:  "Updates the badkeys.info blocklist cache used by convert --check-badkeys.",
	Run:   runBadKeys,
}

var gBadKeysMetaURL string

func init() {
	badkeysCmd.Flags().StringVar(&gBadKeysCacheDir, "badkeys-cache", "", "The badkeys cache directory (default is the user cache directory)")
	badkeysCmd.Flags().StringVar(&gBadKeysMetaURL, "meta-url", badkeys.BadKeysMetaURL, "The badkeys metadata URL")
}

func runBadKeys(cmd *cobra.Command, args []string) {
	conf := newConfig()
	defer conf.Close()

	bkc := badkeys.NewCache(conf.Logger)
	bkc.MetaURL = gBadKeysMetaURL
	if gBadKeysCacheDir != "" {
		bkc.SetCacheDir(gBadKeysCacheDir)
	}

	conf.Logger.Infof("updating badkeys cache in %s from %s", bkc.GetCacheDir(), bkc.MetaURL)
	over, nver, err := bkc.Update(cmd.Context())
	if err != nil {
		conf.Logger.Fatalf("failed to update cache: %v", err)
	}
	conf.Logger.Infof("cache updated (old:%s, new:%s)", over, nver)
}
