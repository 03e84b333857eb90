package storage

import (
	"log"
	"time"

	"github.com/UnendingLoop/ImageBatcher/internal/storage/miniostorage"
	"github.com/wb-go/wbf/config"
)

func NewArtifactStorage(cfg *config.Config, delay time.Duration) *miniostorage.MinioArtifactStorage {
	success := false
	var client *miniostorage.MinioArtifactStorage
	var err error

	for !success {
		log.Println("Connecting to artifact-storage...")
		client, err = miniostorage.NewMinioClient(cfg)
		if err != nil {
			log.Printf("Failed to init connection to artifact-storage: %v\nNext retry in %v...", err, delay)
			time.Sleep(delay)
			continue
		}
		log.Println("Successfully connected artifact-storage!")
		success = true
	}

	return client
}
