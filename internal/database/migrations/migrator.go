package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/vladimiradmaev/calorie-helper/internal/logger"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// Migration represents a database migration
type Migration struct {
	ID   string
	Up   func(*gorm.DB) error
	Down func(*gorm.DB) error
}

// MigrationRecord represents a record of executed migrations
type MigrationRecord struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt int64  `gorm:"autoCreateTime"`
}

// Migrator keeps an ordered registry of migrations
type Migrator struct {
	migrations map[string]Migration
}

// New returns a migrator preloaded with the embedded SQL files and the
// built-in Go migrations
func New() (*Migrator, error) {
	m := &Migrator{migrations: make(map[string]Migration)}
	if err := m.LoadSQL(sqlFiles, "sql"); err != nil {
		return nil, err
	}
	m.Register("003_normalize_product_names", normalizeProductNames, nil)
	return m, nil
}

// Register adds a new migration to the registry
func (m *Migrator) Register(id string, up, down func(*gorm.DB) error) {
	m.migrations[id] = Migration{
		ID:   id,
		Up:   up,
		Down: down,
	}
}

// IDs returns registered migration ids in execution order
func (m *Migrator) IDs() []string {
	ids := make([]string, 0, len(m.migrations))
	for id := range m.migrations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Run executes all pending migrations
func (m *Migrator) Run(db *gorm.DB) error {
	if err := db.AutoMigrate(&MigrationRecord{}); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var executed []MigrationRecord
	if err := db.Find(&executed).Error; err != nil {
		return fmt.Errorf("failed to get executed migrations: %w", err)
	}

	done := make(map[string]bool, len(executed))
	for _, r := range executed {
		done[r.ID] = true
	}

	for _, id := range m.IDs() {
		if done[id] {
			continue
		}
		migration := m.migrations[id]
		logger.Info("Running migration", "id", id)

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return tx.Create(&MigrationRecord{ID: id}).Error
		})
		if err != nil {
			return fmt.Errorf("failed to run migration %s: %w", id, err)
		}
	}

	return nil
}

// LoadSQL registers every .sql file of dir as a migration named after the file
func (m *Migrator) LoadSQL(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}
		statement := string(content)
		m.Register(strings.TrimSuffix(entry.Name(), ".sql"), func(db *gorm.DB) error {
			return db.Exec(statement).Error
		}, nil)
	}

	return nil
}

type productRow struct {
	ID   uint
	Name string
}

// normalizeProductNames lowercases and trims names written before lookups
// were normalized. Of several rows sharing a normalized name the oldest stays.
func normalizeProductNames(db *gorm.DB) error {
	var rows []productRow
	if err := db.Table("products").Select("id", "name").Order("id").Find(&rows).Error; err != nil {
		return err
	}

	keep := make(map[string]productRow, len(rows))
	var drop []uint
	for _, r := range rows {
		normalized := strings.Join(strings.Fields(strings.ToLower(r.Name)), " ")
		if _, ok := keep[normalized]; ok {
			drop = append(drop, r.ID)
			continue
		}
		keep[normalized] = r
	}

	if len(drop) > 0 {
		if err := db.Exec("DELETE FROM products WHERE id IN ?", drop).Error; err != nil {
			return err
		}
	}
	for normalized, r := range keep {
		if normalized == r.Name {
			continue
		}
		if err := db.Exec("UPDATE products SET name = ? WHERE id = ?", normalized, r.ID).Error; err != nil {
			return err
		}
	}
	return nil
}
