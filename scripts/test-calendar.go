package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pfrederiksen/measurecamp-ics/internal/calendar"
	"github.com/pfrederiksen/measurecamp-ics/internal/event"
)

func main() {
	updated := time.Now().UTC().Truncate(time.Second)

	// One timed event and one all-day event
	set := event.NewSet()
	set["amsterdam-2026"] = &event.Record{
		ID:          "amsterdam-2026",
		City:        "Amsterdam",
		SourceURL:   "https://amsterdam.measurecamp.org/",
		Date:        "2026-04-18",
		Time:        "09:00",
		Venue:       "House of Watt",
		Address:     "James Wattstraat 73, 1097 DL Amsterdam",
		LastUpdated: updated,
	}
	set["malmo-2026"] = &event.Record{
		ID:          "malmo-2026",
		City:        "Malmö",
		Date:        "2026-04-25",
		LastUpdated: updated,
	}

	icsContent, errs := calendar.NewSerializer(calendar.DefaultOptions()).Serialize(set)
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "Skipped: %v\n", err)
	}

	// Write to file (owner read/write only)
	filename := "test-measurecamp.ics"
	if err := os.WriteFile(filename, []byte(icsContent), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Generated calendar file: %s\n\n", filename)
	fmt.Println("Test it by:")
	fmt.Println("1. Open the .ics file with your calendar app (double-click)")
	fmt.Println("2. Or subscribe to it from Google Calendar, Apple Calendar, or Outlook")
	fmt.Println("\nFile contents preview:")
	fmt.Println("---")
	fmt.Println(icsContent)
}
