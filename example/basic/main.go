package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/siherrmann/geoalert"
	"github.com/siherrmann/geoalert/core/pipeline"
	"github.com/siherrmann/geoalert/helper"
	"github.com/siherrmann/geoalert/loader"
	"github.com/siherrmann/geoalert/model"
)

const sampleFeed = `{
  "type": "FeatureCollection",
  "features": [
    {
      "properties": {
        "Region_ID": 1, "Region_Name_A": "منطقة تبوك", "Region_Name_E": "Tabuk Region",
        "GovID": 10, "Gov_Name_A": "تبوك", "Gov_Name_E": "Tabuk",
        "alert": [{
          "id": 501, "title": "Flood warning",
          "alertTypeAr": "فيضانات", "alertTypeEn": "Floods",
          "fromDate": "1/21/2025 2:00:00 PM", "toDate": "2025-01-22T06:00:00",
          "alertStatusAr": "نشط", "alertStatusEn": "Active",
          "governorates": [{"id": 10, "latitude": "28.38", "longitude": "36.56"}],
          "alertHazards": [
            {"id": "h1", "descriptionAr": "فيضان سريع", "descriptionEn": "Flash flooding"},
            {"id": "h2", "descriptionAr": "انزلاقات تربة", "descriptionEn": "Land slides"}
          ]
        }]
      }
    },
    {
      "properties": {
        "Region_ID": 2, "Region_Name_A": "منطقة مكة المكرمة", "Region_Name_E": "Makkah Region",
        "GovID": 20, "Gov_Name_A": "جدة", "Gov_Name_E": "Jeddah",
        "alert": []
      }
    }
  ]
}`

// echoChat lists the alert data instead of calling a model.
func echoChat(ctx context.Context, request pipeline.ChatRequest) (string, error) {
	_, data, _ := strings.Cut(request.User, "\nData: ")
	return "- " + data, nil
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	logger := helper.NewLogger(os.Stdout, "info")

	// Local embeddings with all-MiniLM-L6-v2, OpenAI answers only if a key is present
	embed, err := pipeline.DefaultEmbedder()
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}
	chat := pipeline.ChatFunc(echoChat)
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		client := openai.NewClient(option.WithAPIKey(key), option.WithMaxRetries(0))
		chat = pipeline.OpenAIChat(client, "gpt-4", pipeline.NewUpstreamLimiter(10, 5))
	}

	embedder := pipeline.NewEmbedder(embed, pipeline.NewEmbeddingCache(time.Hour, 1000), pipeline.LocalEmbeddingDimension, 15*time.Second, logger)
	generator := pipeline.NewAnswerGenerator(chat, pipeline.DefaultPromptConfig(), 30*time.Second, logger)

	g, err := geoalert.NewGeoAlertWithPipeline(dbConfig, pipeline.NewPipeline(embedder, generator), logger)
	if err != nil {
		log.Fatalf("Failed to create geoalert: %v", err)
	}
	defer g.Close()

	// Load the sample feed without downloading it
	fc, err := loader.ParseFeatureCollection([]byte(sampleFeed))
	if err != nil {
		log.Fatalf("Failed to parse feed: %v", err)
	}
	dataset := fc.Extract()

	l := g.NewLoader()
	if err := l.EmbedDataset(context.Background(), dataset); err != nil {
		log.Fatalf("Failed to embed dataset: %v", err)
	}
	if err := l.Store(context.Background(), dataset); err != nil {
		log.Fatalf("Failed to store dataset: %v", err)
	}
	fmt.Printf("Loaded %d regions, %d governorates and %d alerts\n", len(dataset.Regions), len(dataset.Governorates), len(dataset.Alerts))

	threshold := 0.3
	queries := []string{
		"What are the current alerts in Tabuk?",
		"ما هي التنبيهات في تبوك؟",
		"Any alerts for Jeddah?",
		"weather on mars",
	}
	for _, q := range queries {
		response, err := g.Query(context.Background(), model.QueryRequest{Query: q, ScoreThreshold: &threshold})
		if err != nil {
			log.Fatalf("Failed to query: %v", err)
		}

		fmt.Printf("\nQuerying: %s\n", q)
		fmt.Printf("Answer: %s\n", response.Answer)
		fmt.Printf("Confidence: %.2f\n", response.Confidence)
		for _, s := range response.Sources {
			fmt.Printf("Source: %s %s (%s / %s) %.2f\n", s.Type, s.ID, s.NameEn, s.NameAr, s.Score)
		}
	}

	fmt.Println("\nBasic example completed successfully!")
}
