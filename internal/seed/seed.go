// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"murmur/internal/models"

	"gorm.io/gorm"
)

// Seeder populates the database with demo users, friendships, and message
// history.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	rng     *rand.Rand
}

// NewSeeder creates a Seeder bound to the given database.
func NewSeeder(db *gorm.DB, opts ...SeedOptions) *Seeder {
	var o SeedOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	// #nosec G404: acceptable for seeding
	return &Seeder{
		db:      db,
		factory: NewFactory(db, o),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ClearAll removes all seeded data.
func (s *Seeder) ClearAll() error {
	log.Println("🗑️  Clearing existing data...")
	sql := `TRUNCATE TABLE messages, friendships, password_reset_tokens, users RESTART IDENTITY CASCADE;`
	if err := s.db.Exec(sql).Error; err != nil {
		// sqlite (tests) has no TRUNCATE
		for _, table := range []string{"messages", "friendships", "password_reset_tokens", "users"} {
			if derr := s.db.Exec("DELETE FROM " + table).Error; derr != nil {
				return derr
			}
		}
	}
	return nil
}

// SeedSocialMesh creates numUsers demo users with a random friend mesh.
// Every user ends up with at least one friend so the messaging UI always has
// someone to talk to.
func (s *Seeder) SeedSocialMesh(numUsers int) ([]models.User, error) {
	if numUsers < 2 {
		numUsers = 2
	}

	users := make([]models.User, 0, numUsers)

	// A few fixed accounts for predictable local logins.
	for _, name := range []string{"alice", "bob", "test"} {
		if len(users) >= numUsers {
			break
		}
		name := name
		user, err := s.factory.CreateUser(func(u *models.User) {
			u.Username = name
			u.Email = fmt.Sprintf("%s@example.com", name)
			u.Avatar = fmt.Sprintf("https://i.pravatar.cc/150?u=%s", name)
		})
		if err != nil {
			return nil, fmt.Errorf("create base user %s: %w", name, err)
		}
		users = append(users, *user)
	}

	for i := len(users); i < numUsers; i++ {
		user, err := s.factory.CreateUser()
		if err != nil {
			log.Printf("Failed to create user: %v", err)
			continue
		}
		users = append(users, *user)

		if i%100 == 0 && i > 0 {
			log.Printf("Created %d users...", i)
		}
	}

	// Friend mesh: each user picks 2-5 random peers. Duplicate picks hit
	// the unique pair index and are skipped.
	for i := range users {
		edges := s.rng.Intn(4) + 2
		for e := 0; e < edges; e++ {
			j := s.rng.Intn(len(users))
			if j == i {
				continue
			}
			if err := s.factory.CreateFriendship(&users[i], &users[j]); err != nil {
				continue
			}
		}
	}
	// Guarantee the fixed accounts know each other.
	if len(users) >= 2 {
		_ = s.factory.CreateFriendship(&users[0], &users[1])
	}

	log.Printf("✓ %d users created with friend mesh", len(users))
	return users, nil
}

// SeedConversations creates message history between friends, spread over
// recent days, with older messages mostly marked read.
func (s *Seeder) SeedConversations(users []models.User, numMessages int) (int, error) {
	if len(users) < 2 || numMessages <= 0 {
		return 0, nil
	}

	// Load the actual friend edges so history only exists between friends.
	var edges []models.Friendship
	if err := s.db.Find(&edges).Error; err != nil {
		return 0, err
	}
	if len(edges) == 0 {
		return 0, nil
	}

	byID := make(map[uint]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	created := 0
	for i := 0; i < numMessages; i++ {
		edge := edges[s.rng.Intn(len(edges))]
		a, b := byID[edge.UserID], byID[edge.FriendID]
		if a == nil || b == nil {
			continue
		}
		sender, receiver := a, b
		if s.rng.Intn(2) == 0 {
			sender, receiver = b, a
		}
		if _, err := s.factory.CreateMessage(sender, receiver); err != nil {
			return created, err
		}
		created++

		if created%500 == 0 {
			log.Printf("Created %d messages...", created)
		}
	}

	log.Printf("✓ %d messages created", created)
	return created, nil
}
