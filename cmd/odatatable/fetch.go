package main

import (
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"radiochild/odatatable"
)

// exportKey names an uploaded page when no key is given.
func exportKey(prefix string, ot odatatable.OutputType) string {
	ext := "txt"
	switch ot {
	case odatatable.OTJSON:
		ext = "ndjson"
	case odatatable.OTMessagePack:
		ext = "msgpack"
	}
	return fmt.Sprintf("%s%s.%s", prefix, uuid.NewString(), ext)
}

func newFetchCmd(g *globals) *cobra.Command {
	tf := &tableFlags{}
	var bucket, key, keyPrefix string
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch one page of rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			source, err := a.load(ctx, tf)
			if err != nil {
				return err
			}
			page, err := source.Fetch(ctx)
			if err != nil {
				return err
			}
			ot, err := odatatable.ParseOutputType(a.cfg.Output.Format)
			if err != nil {
				return err
			}
			columns := source.VisibleColumns()

			if bucket == "" {
				return odatatable.NewPageWriter(a.logger, cmd.OutOrStdout(), ot, columns).WritePage(page)
			}
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return fmt.Errorf("loading AWS config: %w", err)
			}
			if key == "" {
				key = exportKey(keyPrefix, ot)
			}
			uploader := odatatable.NewS3Uploader(s3.NewFromConfig(awsCfg), bucket, a.logger)
			if err := uploader.ExportPage(ctx, key, ot, columns, page); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "s3://%s/%s\n", bucket, key)
			return nil
		},
	}
	tf.register(cmd)
	cmd.Flags().StringVar(&bucket, "bucket", "", "upload the page to this S3 bucket instead of printing it")
	cmd.Flags().StringVar(&key, "key", "", "S3 object key (random when empty)")
	cmd.Flags().StringVar(&keyPrefix, "key-prefix", "odatatable/", "prefix for random S3 object keys")
	return cmd
}
