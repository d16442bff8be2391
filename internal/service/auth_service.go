package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/config"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/dto"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/model"
	"github.com/FerQode/facturacion-sri-api2-sub000/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrCredenciales is returned for any failed login or refresh; the handler
// maps it to 401 without saying which half was wrong.
var ErrCredenciales = errors.New("credenciales invalidas")

const bcryptCost = 12

const (
	tokenAcceso   = "access"
	tokenRefresco = "refresh"
)

type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error)
	// CreateUser joins tx when the account is created together with a socio.
	CreateUser(ctx context.Context, tx *gorm.DB, req dto.CrearUsuarioRequest) (*model.Usuario, error)
	ListarUsuarios(ctx context.Context, incluirInactivos bool) ([]dto.UsuarioResponse, error)
	ActualizarUsuario(ctx context.Context, id uuid.UUID, req dto.ActualizarUsuarioRequest) (*dto.UsuarioResponse, error)
	Deactivate(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	Activate(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type authService struct {
	repo   repository.UsuarioRepository
	socios repository.SocioRepository
	cfg    *config.Config
	clock  Clock
}

func NewAuthService(repo repository.UsuarioRepository, socios repository.SocioRepository, cfg *config.Config, clock Clock) AuthService {
	return &authService{repo: repo, socios: socios, cfg: cfg, clock: clock}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.repo.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return nil, ErrCredenciales
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrCredenciales
	}
	return s.emitirTokens(ctx, user)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error) {
	token, err := jwt.Parse(refreshToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrCredenciales
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["typ"] != tokenRefresco {
		return nil, ErrCredenciales
	}
	userIDStr, _ := claims["user_id"].(string)
	uid, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, ErrCredenciales
	}

	user, err := s.repo.FindByID(ctx, uid)
	if err != nil || !user.Activo {
		return nil, ErrCredenciales
	}
	return s.emitirTokens(ctx, user)
}

func (s *authService) CreateUser(ctx context.Context, tx *gorm.DB, req dto.CrearUsuarioRequest) (*model.Usuario, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		return nil, apperror.Validation("username", "requerido")
	}
	if !model.RolValido(req.Rol) {
		return nil, apperror.Validation("rol", "rol desconocido")
	}
	if len(req.Password) < 8 {
		return nil, apperror.Validation("password", "mínimo 8 caracteres")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &model.Usuario{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Rol:          req.Rol,
		Activo:       true,
	}
	if err := s.repo.Create(ctx, tx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *authService) ListarUsuarios(ctx context.Context, incluirInactivos bool) ([]dto.UsuarioResponse, error) {
	users, err := s.repo.List(ctx, incluirInactivos)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.UsuarioResponse, len(users))
	for i := range users {
		resp[i] = usuarioResponse(&users[i], nil)
	}
	return resp, nil
}

func (s *authService) ActualizarUsuario(ctx context.Context, id uuid.UUID, req dto.ActualizarUsuarioRequest) (*dto.UsuarioResponse, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Email != nil {
		user.Email = req.Email
	}
	if req.Rol != "" {
		if !model.RolValido(req.Rol) {
			return nil, apperror.Validation("rol", "rol desconocido")
		}
		user.Rol = req.Rol
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	resp := usuarioResponse(user, nil)
	return &resp, nil
}

func (s *authService) Deactivate(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return s.repo.SetActivo(ctx, tx, id, false)
}

func (s *authService) Activate(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return s.repo.SetActivo(ctx, tx, id, true)
}

func (s *authService) emitirTokens(ctx context.Context, user *model.Usuario) (*dto.LoginResponse, error) {
	var socioID *uuid.UUID
	if user.Rol == model.RolSocio {
		socio, err := s.socios.FindByUsuario(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if socio == nil || !socio.Activo {
			return nil, ErrCredenciales
		}
		socioID = &socio.ID
	}

	accessToken, err := s.generateToken(user, socioID, tokenAcceso, time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.generateToken(user, socioID, tokenRefresco, time.Duration(s.cfg.JWTRefreshHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    s.cfg.JWTExpirationHours * 3600,
		User:         usuarioResponse(user, socioID),
	}, nil
}

func (s *authService) generateToken(user *model.Usuario, socioID *uuid.UUID, typ string, duration time.Duration) (string, error) {
	now := s.clock.now()
	claims := jwt.MapClaims{
		"user_id":  user.ID.String(),
		"username": user.Username,
		"rol":      user.Rol,
		"typ":      typ,
		"exp":      now.Add(duration).Unix(),
		"iat":      now.Unix(),
	}
	if socioID != nil {
		claims["socio_id"] = socioID.String()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func usuarioResponse(u *model.Usuario, socioID *uuid.UUID) dto.UsuarioResponse {
	r := dto.UsuarioResponse{
		ID: u.ID.String(), Username: u.Username, Email: u.Email, Rol: u.Rol, Activo: u.Activo,
	}
	if socioID != nil {
		id := socioID.String()
		r.SocioID = &id
	}
	return r
}
