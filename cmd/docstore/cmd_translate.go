package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/docstore/index"
	"github.com/hupe1980/docstore/timeseries"
	"github.com/hupe1980/docstore/value"
)

func runTranslate(cmd *cobra.Command, args []string) error {
	schema, err := timeseries.NewSchema(timeseries.Options{TimeField: timeField, MetaField: metaField})
	if err != nil {
		return err
	}
	doc, err := value.ParseExtJSON(args[0])
	if err != nil {
		return fmt.Errorf("parse key pattern: %w", err)
	}
	kp, err := index.ParseKeyPattern(doc)
	if err != nil {
		return err
	}
	d, err := schema.BucketIndex(kp, index.Options{Sparse: sparse})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "name:   %s\n", d.Name)
	fmt.Fprintf(out, "bucket: %s\n", d.Key)
	for _, kf := range kp {
		fmt.Fprintf(out, "  %-20s %s\n", kf.Path, schema.Classify(kf.Path))
	}
	return nil
}
