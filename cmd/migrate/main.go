package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/agricapital/agricapital/internal/pkg/env"
)

func main() {
	// Charge les variables d'environnement depuis .env
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	dbURL := fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		env.GetEnv("DB_USER", "agricapital"),
		env.GetEnv("DB_PASSWORD", "agricapital"),
		env.GetEnv("DB_HOST", "db"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", "agricapital_db"),
	)

	log.Printf("Connexion à la base: %s@%s:%s/%s",
		env.GetEnv("DB_USER", "agricapital"),
		env.GetEnv("DB_HOST", "db"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", "agricapital_db"),
	)

	m, err := migrate.New(
		"file://"+env.GetEnv("MIGRATIONS_DIR", "migrations"),
		dbURL,
	)
	if err != nil {
		log.Fatalf("Erreur d'initialisation des migrations: %v", err)
	}

	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Printf("Erreur à la fermeture des migrations: %v, %v", sourceErr, dbErr)
		}
	}()

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Erreur lors des migrations: %v", err)
		} else if errors.Is(err, migrate.ErrNoChange) {
			log.Println("Aucun changement: la base est déjà à jour")
		} else {
			log.Println("Migrations appliquées")
		}

	case "down":
		// Annule la dernière migration
		if err := m.Steps(-1); err != nil {
			log.Fatalf("Erreur lors de l'annulation de la dernière migration: %v", err)
		}
		log.Println("Dernière migration annulée")

	case "goto":
		version := versionArg()
		if err := m.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Erreur de migration vers la version %d: %v", version, err)
		} else if errors.Is(err, migrate.ErrNoChange) {
			log.Printf("Aucun changement: la base est déjà en version %d", version)
		} else {
			log.Printf("Migration vers la version %d réussie", version)
		}

	case "force":
		// Débloque une base marquée dirty après un échec
		version := versionArg()
		if err := m.Force(int(version)); err != nil {
			log.Fatalf("Erreur lors du forçage de la version %d: %v", version, err)
		}
		log.Printf("Version forcée à %d", version)

	case "status":
		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Println("Aucune migration appliquée")
			} else {
				log.Fatalf("Erreur de lecture de la version: %v", err)
			}
		} else {
			dirtyStatus := ""
			if dirty {
				dirtyStatus = " (dirty)"
			}
			log.Printf("Version actuelle: %d%s", version, dirtyStatus)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func versionArg() uint {
	if len(os.Args) < 3 {
		log.Fatalf("Veuillez indiquer un numéro de version")
	}
	version, err := strconv.ParseUint(os.Args[2], 10, 64)
	if err != nil {
		log.Fatalf("Numéro de version invalide: %v", err)
	}
	return uint(version)
}

func printUsage() {
	fmt.Println("Usage: go run cmd/migrate/main.go [commande]")
	fmt.Println("Commandes disponibles:")
	fmt.Println("  up      - Applique toutes les migrations en attente")
	fmt.Println("  down    - Annule la dernière migration")
	fmt.Println("  goto N  - Migre vers la version N")
	fmt.Println("  force N - Force la version N (base dirty)")
	fmt.Println("  status  - Affiche la version actuelle")
}
