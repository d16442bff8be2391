// Command seeduser crea el usuario administrador inicial.
// Uso: ADMIN_PASSWORD=... go run ./cmd/seeduser
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/config"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/dto"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/infra"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	username := envOr("ADMIN_USERNAME", "admin")
	password := os.Getenv("ADMIN_PASSWORD")
	if len(password) < 8 {
		log.Fatal().Msg("ADMIN_PASSWORD must have at least 8 characters")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := infra.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("migrations")
	}

	auth := service.NewAuthService(repository.NewUsuarioRepository(db), repository.NewSocioRepository(db), cfg, nil)
	u, err := auth.CreateUser(context.Background(), nil, dto.CrearUsuarioRequest{
		Username: username,
		Password: password,
		Rol:      model.RolAdministrador,
	})
	if apperror.IsKind(err, apperror.KindIntegrityConflict) {
		fmt.Printf("Usuario '%s' ya existe, sin cambios\n", username)
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("create user")
	}
	fmt.Printf("Usuario '%s' creado (id %s)\n", u.Username, u.ID)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
