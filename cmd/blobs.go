package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"reverbfm/config"
	"reverbfm/db"
	"reverbfm/logger"
	"reverbfm/repository"
	"reverbfm/storage"

	"github.com/spf13/cobra"
)

var blobsOrphansOnly bool

var blobsCmd = &cobra.Command{
	Use:   "blobs",
	Short: "Inspect the asset buckets",
	Long: `List the contents of the songs and images buckets and report blobs that no
song record references. Failed ingestions leave such orphans behind; this
command only reports them, it never deletes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger.InitLogger(logger.Config{Level: logger.WarnLevel})

		blobs, err := storage.NewClient(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to MinIO: %v", err)
		}

		if err := db.ConnectDB(cfg); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.DB.Close()

		trackRepo := repository.NewMySQLTrackRepository(db.DB)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		songPaths, imagePaths, err := trackRepo.GetAllBlobPaths(ctx)
		if err != nil {
			log.Fatalf("Failed to load referenced paths: %v", err)
		}

		reportBucket(ctx, blobs, blobs.SongBucket(), songPaths)
		reportBucket(ctx, blobs, blobs.ImageBucket(), imagePaths)
	},
}

func reportBucket(ctx context.Context, blobs *storage.Client, bucket string, referenced map[string]struct{}) {
	objects, err := blobs.ListBucket(ctx, bucket)
	if err != nil {
		log.Fatalf("Failed to list bucket %s: %v", bucket, err)
	}

	stats := storage.Stats(objects)
	fmt.Printf("Bucket %s: %d objects, %.2f MB total\n",
		bucket, stats.TotalObjects, float64(stats.TotalSize)/(1024*1024))

	orphans := 0
	for _, obj := range objects {
		_, ok := referenced[obj.Key]
		if ok && blobsOrphansOnly {
			continue
		}
		marker := " "
		if !ok {
			marker = "ORPHAN"
			orphans++
		}
		fmt.Printf("  %-6s %-70s %10d  %s\n",
			marker, obj.Key, obj.Size, obj.LastModified.Format(time.RFC3339))
	}
	fmt.Printf("  %d orphaned object(s)\n\n", orphans)
}

func init() {
	blobsCmd.Flags().BoolVarP(&blobsOrphansOnly, "orphans", "o", false, "only show orphaned objects")
	rootCmd.AddCommand(blobsCmd)
}
