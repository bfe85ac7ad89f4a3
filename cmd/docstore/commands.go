package main

import (
	"github.com/spf13/cobra"
)

var (
	// translate
	timeField string
	metaField string
	sparse    bool

	// inspect
	storeKind   string
	localDir    string
	bucket      string
	prefix      string
	endpoint    string
	region      string
	accessKey   string
	secretKey   string
	insecure    bool
	cacheBlocks int
	ddbTable    string
	showDocs    bool

	rootCmd = &cobra.Command{
		Use:           "docstore",
		Short:         "Tools for docstore snapshots and time-series indexes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	translateCmd = &cobra.Command{
		Use:   "translate [key pattern]",
		Short: "Translates a time-series view key pattern into its bucket key pattern",
		Example: `  docstore translate --time tm --meta mm '{"mm.tag": 1, "tm": -1}'
  docstore translate --time tm --meta mm --sparse '{"x": 1}'`,
		Args: cobra.ExactArgs(1),
		RunE: runTranslate, // Defined in cmd_translate.go
	}

	inspectCmd = &cobra.Command{
		Use:   "inspect [snapshot]",
		Short: "Prints the header and catalog of a snapshot",
		Long: `Prints the header and catalog of a snapshot. Without an argument the
snapshot CURRENT points to is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInspect, // Defined in cmd_inspect.go
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists the stored snapshots, oldest first",
		Args:  cobra.NoArgs,
		RunE:  runList, // Defined in cmd_inspect.go
	}
)

func init() {
	translateCmd.Flags().StringVar(&timeField, "time", "", "time field of the view")
	translateCmd.Flags().StringVar(&metaField, "meta", "", "meta field of the view")
	translateCmd.Flags().BoolVar(&sparse, "sparse", false, "validate the pattern as a sparse index")
	_ = translateCmd.MarkFlagRequired("time")

	for _, cmd := range []*cobra.Command{inspectCmd, listCmd} {
		f := cmd.Flags()
		f.StringVar(&storeKind, "store", "local", "blob store: local, s3, s3express or minio")
		f.StringVar(&localDir, "dir", ".", "snapshot directory of the local store")
		f.StringVar(&bucket, "bucket", "", "bucket of the s3 or minio store")
		f.StringVar(&prefix, "prefix", "", "key prefix inside the bucket")
		f.StringVar(&endpoint, "endpoint", "", "endpoint override, required for minio")
		f.StringVar(&region, "region", "", "AWS region")
		f.StringVar(&accessKey, "access-key", "", "minio access key")
		f.StringVar(&secretKey, "secret-key", "", "minio secret key")
		f.BoolVar(&insecure, "insecure", false, "use plain HTTP for minio")
		f.StringVar(&ddbTable, "ddb-table", "", "DynamoDB table holding the CURRENT pointer of an s3 or s3express store")
		f.IntVar(&cacheBlocks, "cache-blocks", 256, "64KiB read blocks cached for s3 and minio, 0 disables")
	}
	inspectCmd.Flags().BoolVar(&showDocs, "docs", false, "include the records")

	rootCmd.AddCommand(translateCmd, inspectCmd, listCmd)
}
