// quick_verify prints report counts per status and flags reports whose image
// can no longer be found in the configured store.
package main

import (
	"context"
	"fmt"
	"log"

	"p9e.in/pothole/config"
	"p9e.in/pothole/models"
	"p9e.in/pothole/storage"
)

type statusCount struct {
	Status models.PotholeStatus `gorm:"column:pothole_status"`
	Total  int64                `gorm:"column:total"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	db, err := config.Connect(cfg.DB)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer config.Close(db)

	ctx := context.Background()
	images, err := storage.New(ctx, storage.Options{
		Backend:         cfg.Storage.Backend,
		UploadDir:       cfg.Storage.UploadDir,
		PublicPrefix:    cfg.Storage.PublicPrefix,
		GCSBucket:       cfg.Storage.GCSBucket,
		GCSCredentials:  cfg.Storage.GCSCredentials,
		GCSObjectPrefix: cfg.Storage.GCSObjectPrefix,
		MaxImageBytes:   cfg.Storage.MaxImageBytes,
	})
	if err != nil {
		log.Fatal("Failed to open image store:", err)
	}

	fmt.Println("========================================")
	fmt.Println("VERIFICATION: Pothole reports")
	fmt.Println("========================================")

	var counts []statusCount
	if err := db.Model(&models.PotholeReport{}).
		Select("pothole_status, count(*) as total").
		Group("pothole_status").
		Scan(&counts).Error; err != nil {
		log.Fatal("Query failed:", err)
	}

	var total int64
	for _, c := range counts {
		fmt.Printf("%-10s %d\n", c.Status, c.Total)
		total += c.Total
	}
	fmt.Printf("\nTotal reports: %d\n\n", total)

	var refs []struct {
		ID       string
		ImageRef string `gorm:"column:image"`
	}
	if err := db.Model(&models.PotholeReport{}).Select("id, image").Scan(&refs).Error; err != nil {
		log.Fatal("Query failed:", err)
	}

	missing := 0
	for _, r := range refs {
		ok, err := images.Exists(ctx, r.ImageRef)
		if err != nil {
			fmt.Printf("?? %s: %v\n", r.ID, err)
			continue
		}
		if !ok {
			missing++
			fmt.Printf("MISSING image for %s (%s)\n", r.ID, r.ImageRef)
		}
	}

	if missing == 0 {
		fmt.Println("SUCCESS: every report has its image")
	} else {
		fmt.Printf("PROBLEM: %d report(s) reference a missing image\n", missing)
	}
}
