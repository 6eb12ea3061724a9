// cmd/seeder/main.go
package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/unclebandit/wabroadcast-backend/internal/config"
	"github.com/unclebandit/wabroadcast-backend/internal/model"
	"github.com/unclebandit/wabroadcast-backend/internal/repository"
	"github.com/unclebandit/wabroadcast-backend/internal/service"
	"github.com/unclebandit/wabroadcast-backend/internal/store"
)

const demoCSV = `Number,Name,Job Title,Company Name,City
254712345678,Jane Wanjiru,Operations Lead,Acme Distribution,Nairobi
254723456789,Brian Otieno,Sales Manager,Savanna Traders,Mombasa
14155552671,Maria Lopez,Founder,Lopez & Co,San Francisco
`

// Seeds a demo recipient list and a draft campaign so a fresh install
// has something to click on.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	records, err := store.New(cfg.StoreDir, cfg.StoreSecret)
	if err != nil {
		log.Fatal(err)
	}
	campaignRecords, err := records.Collection("campaigns")
	if err != nil {
		log.Fatal(err)
	}
	listRecords, err := records.Collection("recipient_lists")
	if err != nil {
		log.Fatal(err)
	}

	result := service.ImportRecipients(demoCSV, nil)
	if !result.Success {
		log.Fatalf("demo CSV did not import cleanly: %v", result.Errors)
	}

	listRepo := repository.NewListRepository(listRecords)
	list := &model.RecipientList{
		Name:        "Demo contacts",
		Description: "Seeded example list",
		CreatedBy:   "seeder",
		Tags:        []string{"demo"},
		Recipients:  result.Recipients,
	}
	if err := listRepo.Create(list); err != nil {
		log.Fatal(err)
	}

	campaignRepo := repository.NewCampaignRepository(campaignRecords)
	campaign := &model.Campaign{
		Name:      "Demo campaign",
		CreatedBy: "seeder",
		SessionID: "demo-session",
		Message: model.Message{
			Type:    model.MessageText,
			Content: "Hi {{Name}}, greetings from {{Company}}!",
		},
		Recipients: result.Recipients,
		Settings: model.Settings{
			DelayBetweenMessages: 3000,
			RetryFailedMessages:  true,
			MaxRetries:           3,
		},
	}
	if err := campaignRepo.Create(campaign); err != nil {
		log.Fatal(err)
	}

	fmt.Println("seeded recipient list:", list.ID)
	fmt.Println("seeded campaign:      ", campaign.ID)
}
