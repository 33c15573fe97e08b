package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/payrail/internal/apikey/domain"
	"github.com/railzwaylabs/payrail/internal/clock"
	"github.com/railzwaylabs/payrail/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const secretBytes = 24

type Params struct {
	fx.In

	Config config.Config
	Repo   domain.Repository
	Clock  clock.Clock
	Node   *snowflake.Node
	Log    *zap.Logger
}

type Service struct {
	env   string
	repo  domain.Repository
	clock clock.Clock
	node  *snowflake.Node
	log   *zap.Logger
}

func New(p Params) domain.Service {
	env := "test"
	if p.Config.IsProduction() {
		env = "live"
	}
	return &Service{
		env:   env,
		repo:  p.Repo,
		clock: p.Clock,
		node:  p.Node,
		log:   p.Log.Named("apikey.service"),
	}
}

func (s *Service) Create(ctx context.Context, input domain.CreateInput) (*domain.APIKey, string, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, "", domain.ErrInvalidName
	}
	if !input.Role.Valid() {
		return nil, "", fmt.Errorf("%w: %q", domain.ErrInvalidRole, input.Role)
	}

	plain, err := s.generate()
	if err != nil {
		return nil, "", err
	}

	now := s.clock.Now(ctx)
	key := &domain.APIKey{
		ID:         s.node.Generate(),
		MerchantID: input.MerchantID,
		Name:       name,
		Prefix:     plain[:len(domain.KeyPrefix)+len(s.env)+6],
		KeyHash:    domain.HashAPIKey(plain),
		Role:       input.Role,
		IsActive:   true,
		ExpiresAt:  input.ExpiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, nil, key); err != nil {
		return nil, "", err
	}

	s.log.Info("api key created",
		zap.String("merchant_id", key.MerchantID.String()),
		zap.String("id", key.ID.String()),
		zap.String("role", string(key.Role)),
	)
	return key, plain, nil
}

func (s *Service) Resolve(ctx context.Context, plain string) (*domain.APIKey, error) {
	plain = strings.TrimSpace(plain)
	if !strings.HasPrefix(plain, domain.KeyPrefix+"_") {
		return nil, domain.ErrUnauthorized
	}
	hash := domain.HashAPIKey(plain)
	key, err := s.repo.FindByHash(ctx, nil, hash)
	if err != nil {
		return nil, err
	}
	if key == nil || subtle.ConstantTimeCompare([]byte(key.KeyHash), []byte(hash)) != 1 {
		return nil, domain.ErrUnauthorized
	}
	if !key.Usable(s.clock.Now(ctx)) {
		return nil, domain.ErrUnauthorized
	}
	return key, nil
}

func (s *Service) Revoke(ctx context.Context, merchantID, id snowflake.ID) error {
	key, err := s.repo.FindByID(ctx, nil, merchantID, id)
	if err != nil {
		return err
	}
	if key == nil {
		return domain.ErrNotFound
	}
	if !key.IsActive {
		return nil
	}
	key.IsActive = false
	key.UpdatedAt = s.clock.Now(ctx)
	if err := s.repo.Update(ctx, nil, key); err != nil {
		return err
	}
	s.log.Info("api key revoked", zap.String("id", key.ID.String()))
	return nil
}

func (s *Service) List(ctx context.Context, merchantID snowflake.ID) ([]domain.APIKey, error) {
	return s.repo.List(ctx, nil, merchantID)
}

// generate returns pr_<env>_<random>.
func (s *Service) generate() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return domain.KeyPrefix + "_" + s.env + "_" + hex.EncodeToString(buf), nil
}
