package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"lodgetix/internal/events"
	"lodgetix/internal/packages"
	"lodgetix/internal/shared/config"
	"lodgetix/internal/shared/database"
	"lodgetix/internal/tickets"
	"lodgetix/internal/users"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Seeder struct {
	db *database.DB
}

func main() {
	fmt.Println("🌱 Starting LodgeTix Database Seeder...")

	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db}

	// Clean database
	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	// Seed data
	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables in the correct order (respecting foreign key constraints)
func (s *Seeder) CleanDatabase() error {
	// Order matters due to foreign key constraints
	// Delete in reverse dependency order
	tables := []string{
		"attendees",
		"registrations",
		"tickets",
		"ticket_definitions",
		"events",
		"users",
	}

	tx := s.db.PostgreSQL.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// Disable foreign key constraints temporarily
	if err := tx.Exec("SET CONSTRAINTS ALL DEFERRED").Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to defer constraints: %w", err)
	}

	for _, table := range tables {
		fmt.Printf("  Truncating table: %s\n", table)
		if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	// Re-enable foreign key constraints
	if err := tx.Exec("SET CONSTRAINTS ALL IMMEDIATE").Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to restore constraints: %w", err)
	}

	return tx.Commit().Error
}

// SeedAll seeds all required data
func (s *Seeder) SeedAll() error {
	ctx := context.Background()

	// Seed users first (no dependencies)
	userIDs, err := s.SeedUsers()
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	// Seed events
	eventIDs, err := s.SeedEvents(userIDs["admin"])
	if err != nil {
		return fmt.Errorf("failed to seed events: %w", err)
	}

	// Seed ticket definitions and provision their ticket rows
	if err := s.SeedTicketDefinitions(eventIDs); err != nil {
		return fmt.Errorf("failed to seed ticket definitions: %w", err)
	}

	// Clear Redis so the availability mirror reseeds from Postgres
	if err := s.db.Redis.FlushDB(ctx).Err(); err != nil {
		log.Printf("Warning: Failed to clear Redis cache: %v", err)
	}

	return nil
}

// SeedUsers creates 3 users: 1 admin and 2 regular users
func (s *Seeder) SeedUsers() (map[string]uuid.UUID, error) {
	fmt.Println("  👤 Seeding users...")

	userIDs := make(map[string]uuid.UUID)

	// Hash password for all users (using "qwerty")
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("qwerty"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	usersData := []struct {
		key         string
		firstName   string
		lastName    string
		email       string
		role        users.Role
		lodgeName   string
		lodgeNumber string
		rank        string
	}{
		{"admin", "Admin", "User", "admin@lodgetix.test", users.RoleAdmin, "", "", ""},
		{"user1", "William", "Harris", "w.harris@lodgetix.test", users.RoleUser, "Lodge Canberra", "465", "MM"},
		{"user2", "James", "Chen", "j.chen@lodgetix.test", users.RoleUser, "Lodge Unity", "6", "WM"},
	}

	for _, userData := range usersData {
		user := users.User{
			ID:          uuid.New(),
			FirstName:   userData.firstName,
			LastName:    userData.lastName,
			Email:       userData.email,
			Password:    string(hashedPassword),
			Role:        userData.role,
			LodgeName:   userData.lodgeName,
			LodgeNumber: userData.lodgeNumber,
			Rank:        userData.rank,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}

		if err := s.db.PostgreSQL.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user %s: %w", userData.email, err)
		}

		userIDs[userData.key] = user.ID
		fmt.Printf("    ✅ Created user: %s (%s)\n", user.Email, user.Role)
	}

	return userIDs, nil
}

// SeedEvents creates sample masonic functions
func (s *Seeder) SeedEvents(adminID uuid.UUID) ([]uuid.UUID, error) {
	fmt.Println("  🎪 Seeding events...")

	var eventIDs []uuid.UUID

	eventsData := []struct {
		name        string
		slug        string
		description string
		venue       string
		daysFromNow int
		featured    bool
		hostLodge   string
		dressCode   string
		regalia     string
		eligibleTo  string
	}{
		{
			name:        "Grand Installation 2026",
			slug:        "grand-installation-2026",
			description: "Installation of the Grand Master and investiture of Grand Officers, followed by the Grand Banquet.",
			venue:       "Sydney Masonic Centre",
			daysFromNow: 45,
			featured:    true,
			hostLodge:   "United Grand Lodge of NSW & ACT",
			dressCode:   "Morning suit or dark lounge suit",
			regalia:     "Full regalia",
			eligibleTo:  "Master Masons and guests",
		},
		{
			name:        "Quarterly Communication",
			slug:        "quarterly-communication",
			description: "Quarterly communication of Grand Lodge with reports and ballots.",
			venue:       "Sydney Masonic Centre",
			daysFromNow: 20,
			featured:    false,
			hostLodge:   "United Grand Lodge of NSW & ACT",
			dressCode:   "Dark lounge suit",
			regalia:     "Craft regalia",
			eligibleTo:  "Master Masons",
		},
		{
			name:        "Ladies Night Dinner Dance",
			slug:        "ladies-night-dinner-dance",
			description: "Annual dinner dance for brethren, partners and guests with a three course meal and live band.",
			venue:       "The Grand Ballroom, Hyatt Regency",
			daysFromNow: 60,
			featured:    true,
			hostLodge:   "Lodge Canberra No. 465",
			dressCode:   "Black tie",
			regalia:     "",
			eligibleTo:  "All",
		},
		{
			name:        "Lodge Centenary Celebration",
			slug:        "lodge-centenary-celebration",
			description: "Centenary meeting and festive board marking one hundred years of the lodge.",
			venue:       "Canberra Masonic Centre",
			daysFromNow: 90,
			featured:    false,
			hostLodge:   "Lodge Commonwealth of Australia No. 633",
			dressCode:   "Dinner suit",
			regalia:     "Full regalia",
			eligibleTo:  "Master Masons and guests",
		},
	}

	for _, eventData := range eventsData {
		event := events.Event{
			ID:          uuid.New(),
			Name:        eventData.name,
			Slug:        eventData.slug,
			Description: eventData.description,
			Venue:       eventData.venue,
			DateTime:    time.Now().AddDate(0, 0, eventData.daysFromNow),
			Status:      events.EventStatusPublished,
			ImageURL:    "",
			Featured:    eventData.featured,
			HostLodge:   eventData.hostLodge,
			DressCode:   eventData.dressCode,
			Regalia:     eventData.regalia,
			EligibleTo:  eventData.eligibleTo,
			CreatedBy:   adminID,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}

		if err := s.db.PostgreSQL.Create(&event).Error; err != nil {
			return nil, fmt.Errorf("failed to create event %s: %w", event.Name, err)
		}

		eventIDs = append(eventIDs, event.ID)
		fmt.Printf("    ✅ Created event: %s\n", event.Name)
	}

	return eventIDs, nil
}

// SeedTicketDefinitions creates ticket definitions per event and
// provisions the full allocation of ticket rows for each
func (s *Seeder) SeedTicketDefinitions(eventIDs []uuid.UUID) error {
	fmt.Println("  🎟️ Seeding ticket definitions...")

	definitionsByEvent := [][]struct {
		name         string
		description  string
		price        float64
		capacity     int
		maxPerOrder  int
		attendeeType string
	}{
		{
			{"Ceremony & Banquet - Brother", "Installation ceremony and Grand Banquet", 250.0, 400, 10, "mason"},
			{"Banquet Only - Partner", "Grand Banquet seat for partners", 180.0, 200, 10, "partner"},
			{"Ceremony Only", "Installation ceremony without banquet", 0.0, 150, 10, ""},
		},
		{
			{"Communication Attendance", "Attendance at the quarterly communication", 0.0, 300, 5, "mason"},
		},
		{
			{"Dinner Dance - Adult", "Three course dinner and dancing", 120.0, 180, 12, ""},
			{"Dinner Dance - Table of Ten", "Reserved table for a full lodge party", 1100.0, 12, 2, ""},
		},
		{
			{"Centenary Meeting & Festive Board", "Meeting and festive board", 85.0, 120, 8, "mason"},
			{"Festive Board - Guest", "Festive board seat for guests", 85.0, 60, 8, "guest"},
		},
	}

	for i, eventID := range eventIDs {
		if i >= len(definitionsByEvent) {
			break
		}

		for _, defData := range definitionsByEvent[i] {
			definition := packages.TicketDefinition{
				ID:                   uuid.New(),
				EventID:              eventID,
				Name:                 defData.name,
				Description:          defData.description,
				Price:                defData.price,
				TotalCapacity:        defData.capacity,
				MaxPerOrder:          defData.maxPerOrder,
				EligibleAttendeeType: defData.attendeeType,
				IsActive:             true,
				CreatedAt:            time.Now(),
				UpdatedAt:            time.Now(),
			}

			if err := s.db.PostgreSQL.Create(&definition).Error; err != nil {
				return fmt.Errorf("failed to create ticket definition %s: %w", definition.Name, err)
			}

			if err := s.provisionTickets(&definition); err != nil {
				return fmt.Errorf("failed to provision tickets for %s: %w", definition.Name, err)
			}

			fmt.Printf("    ✅ Created definition: %s (%d tickets)\n", definition.Name, definition.TotalCapacity)
		}
	}

	return nil
}

// provisionTickets creates one available ticket row per unit of capacity
func (s *Seeder) provisionTickets(definition *packages.TicketDefinition) error {
	rows := make([]tickets.Ticket, 0, definition.TotalCapacity)
	for i := 0; i < definition.TotalCapacity; i++ {
		rows = append(rows, tickets.Ticket{
			ID:                 uuid.New(),
			EventID:            definition.EventID,
			TicketDefinitionID: definition.ID,
			Status:             tickets.TicketStatusAvailable,
			Price:              definition.Price,
			CreatedAt:          time.Now(),
			UpdatedAt:          time.Now(),
		})
	}

	return s.db.PostgreSQL.CreateInBatches(rows, 500).Error
}
