package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"trialdesk/internal/database"
	"trialdesk/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type CatalogConfig struct {
	Teachers []models.Teacher `yaml:"teachers"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		catalogPath = flag.String("catalog", "configs/catalog.yaml", "path to catalog.yaml")
		dbPath      = flag.String("db", "./data/trials.db", "path to sqlite db")
		refZone     = flag.String("zone", "Europe/Moscow", "reference timezone")
	)
	flag.Parse()

	data, err := os.ReadFile(*catalogPath)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var cfg CatalogConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	if len(cfg.Teachers) == 0 {
		return fmt.Errorf("no teachers in yaml")
	}

	loc, err := time.LoadLocation(*refZone)
	if err != nil {
		return fmt.Errorf("load zone: %w", err)
	}

	db, err := database.NewDB(*dbPath, loc, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db.SetTeachers(cfg.Teachers)
	upserted := 0
	for i := range cfg.Teachers {
		t := &cfg.Teachers[i]
		if t.Name == "" {
			continue
		}
		if err = db.UpsertTeacher(ctx, t); err != nil {
			return fmt.Errorf("upsert %s: %w", t.Name, err)
		}
		upserted++
	}

	fmt.Printf("done: upserted=%d\n", upserted)
	return nil
}
