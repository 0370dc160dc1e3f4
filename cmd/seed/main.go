package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"agentsurvey/internal/config"
	"agentsurvey/internal/model"
	"agentsurvey/internal/repository"
	"agentsurvey/internal/service"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func intPtr(i int) *int { return &i }

func sampleSurvey() *model.Survey {
	return &model.Survey{
		Title: "Smartphone Launch Feedback",
		Questions: []model.Question{
			{
				Name:    "satisfaction",
				Text:    "How satisfied are you with your {{ scenario.device }} overall?",
				Type:    model.QuestionTypeLinearScale,
				Options: []any{int64(1), int64(2), int64(3), int64(4), int64(5)},
				OptionLabels: map[string]string{
					"1": "Not at all satisfied",
					"5": "Extremely satisfied",
				},
			},
			{
				Name:    "model",
				Text:    "Which model did you purchase?",
				Type:    model.QuestionTypeMultipleChoice,
				Options: "{{ scenario.models }}",
			},
			{
				Name:          "features",
				Text:          "Which features of the {{ model.answer }} do you use daily?",
				Type:          model.QuestionTypeCheckBox,
				Options:       []any{"Display", "Battery", "Camera", "Speed", "Design"},
				MinSelections: intPtr(1),
			},
			{
				Name:     "hours",
				Text:     "How many hours a day do you use it?",
				Type:     model.QuestionTypeNumerical,
				MinValue: int64(0),
				MaxValue: int64(24),
			},
			{
				Name: "improve",
				Text: "You said you were at {{ satisfaction.answer }} out of 5. What one thing would you improve?",
				Type: model.QuestionTypeFreeText,
			},
		},
		MemoryPlan: model.MemoryPlan{
			"improve": {"satisfaction", "features"},
		},
		Instructions: []model.Instruction{
			{Name: "intro", Text: "You recently bought a new phone and are taking a short survey about it.", Before: "satisfaction"},
		},
	}
}

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to MongoDB: %v\n", err)
		os.Exit(1)
	}
	defer client.Disconnect(ctx)

	surveys := service.NewSurveyService(repository.NewSurveyRepo(client.Database(cfg.MongoDatabase)), nil)

	ownerID := service.OperatorID(cfg.OperatorUsername)
	id, err := surveys.Create(ctx, ownerID, sampleSurvey())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to insert survey: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Seeded survey %s for operator %s (%s)\n", id, cfg.OperatorUsername, ownerID)
}
