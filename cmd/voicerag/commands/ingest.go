package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/voicebridge/voicerag/pkg/rag"
)

var (
	ingestDir      string
	ingestS3Bucket string
	ingestS3Prefix string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Populate the knowledge base from a corpus",
	Long: `Reads text files (.txt, .md, .rst, .csv) from a local directory or an
S3 bucket, chunks them, and indexes each chunk. When an embed API key is
configured the chunks are embedded for vector search; otherwise the index
serves keyword search only.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "local corpus directory")
	ingestCmd.Flags().StringVar(&ingestS3Bucket, "s3-bucket", "", "S3 corpus bucket")
	ingestCmd.Flags().StringVar(&ingestS3Prefix, "s3-prefix", "", "key prefix within the S3 bucket")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if (ingestDir == "") == (ingestS3Bucket == "") {
		return fmt.Errorf("exactly one of --dir or --s3-bucket is required")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	logger := slog.Default()

	var embedder rag.Embedder
	if cfg.EmbedAPIKey != "" {
		embOpts := []rag.EmbedderOption{}
		if cfg.EmbedModel != "" {
			embOpts = append(embOpts, rag.WithEmbedModel(cfg.EmbedModel))
		}
		if cfg.EmbedBaseURL != "" {
			embOpts = append(embOpts, rag.WithEmbedBaseURL(cfg.EmbedBaseURL))
		}
		embedder, err = rag.NewOpenAIEmbedder(cfg.EmbedAPIKey, embOpts...)
		if err != nil {
			return err
		}
	}

	index, err := rag.OpenIndex(rag.IndexOptions{
		Dir:      cfg.IndexDir,
		Embedder: embedder,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer index.Close()

	var src rag.Source
	if ingestDir != "" {
		src = &rag.DirSource{Dir: ingestDir}
	} else {
		client, err := s3ClientFromEnv()
		if err != nil {
			return err
		}
		src = rag.NewS3Source(client, ingestS3Bucket, ingestS3Prefix)
	}

	stats, err := rag.Ingest(ctx, index, src, logger)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d chunks from %d files (%d documents total)\n",
		stats.Chunks, stats.Files, index.Len())
	return nil
}

// s3ClientFromEnv builds an S3 client from the standard AWS environment
// variables. AWS_ENDPOINT_URL supports S3-compatible stores.
func s3ClientFromEnv() (*s3.Client, error) {
	region := os.Getenv("AWS_REGION")
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if region == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("AWS_REGION, AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required for --s3-bucket")
	}

	opts := s3.Options{
		Region: region,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     accessKey,
				SecretAccessKey: secretKey,
				SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			}, nil
		}),
	}
	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts), nil
}
