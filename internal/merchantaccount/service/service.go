package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/railzwaylabs/payrail/internal/clock"
	"github.com/railzwaylabs/payrail/internal/connector"
	connectordomain "github.com/railzwaylabs/payrail/internal/connector/domain"
	"github.com/railzwaylabs/payrail/internal/merchantaccount/domain"
	"github.com/railzwaylabs/payrail/internal/security/vault"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Repo     domain.Repository
	Vault    vault.Provider
	Registry *connector.Registry
	Clock    clock.Clock
	Node     *snowflake.Node
	Log      *zap.Logger
}

type Service struct {
	repo     domain.Repository
	vault    vault.Provider
	registry *connector.Registry
	clock    clock.Clock
	node     *snowflake.Node
	log      *zap.Logger
}

func New(p Params) domain.Service {
	return &Service{
		repo:     p.Repo,
		vault:    p.Vault,
		registry: p.Registry,
		clock:    p.Clock,
		node:     p.Node,
		log:      p.Log.Named("merchantaccount.service"),
	}
}

func (s *Service) Create(ctx context.Context, input domain.CreateInput) (*domain.MerchantConnectorAccount, error) {
	data, err := s.registry.Convert(input.ConnectorName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidConnector, strings.TrimSpace(input.ConnectorName))
	}

	auth, err := s.checkDetails(data.Connector, input.AccountDetails)
	if err != nil {
		return nil, err
	}

	label := strings.TrimSpace(input.ConnectorLabel)
	if label == "" {
		profile := strings.TrimSpace(input.Profile)
		if profile == "" {
			profile = domain.DefaultProfile
		}
		label = slug.Make(data.Name + "_" + profile)
	}

	existing, err := s.repo.FindByLabel(ctx, nil, input.MerchantID, label)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicateLabel
	}

	encrypted, err := s.encrypt(auth)
	if err != nil {
		return nil, err
	}
	methods, err := encodeMethods(input.PaymentMethodsEnabled)
	if err != nil {
		return nil, err
	}
	metadata, err := encodeMetadata(input.Metadata)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now(ctx)
	mca := &domain.MerchantConnectorAccount{
		ID:                    s.node.Generate(),
		MerchantID:            input.MerchantID,
		ConnectorName:         data.Name,
		ConnectorLabel:        label,
		AuthKind:              string(auth.Kind),
		EncryptedDetails:      encrypted,
		TestMode:              input.TestMode,
		Disabled:              input.Disabled,
		Priority:              input.Priority,
		Metadata:              metadata,
		PaymentMethodsEnabled: methods,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.repo.Insert(ctx, nil, mca); err != nil {
		return nil, err
	}

	s.log.Info("connector account created",
		zap.String("merchant_id", mca.MerchantID.String()),
		zap.String("id", mca.ID.String()),
		zap.String("connector", mca.ConnectorName),
		zap.String("label", mca.ConnectorLabel),
	)
	return mca, nil
}

func (s *Service) Get(ctx context.Context, merchantID, id snowflake.ID) (*domain.MerchantConnectorAccount, error) {
	mca, err := s.repo.FindByID(ctx, nil, merchantID, id)
	if err != nil {
		return nil, err
	}
	if mca == nil {
		return nil, domain.ErrNotFound
	}
	return mca, nil
}

func (s *Service) List(ctx context.Context, merchantID snowflake.ID) ([]domain.MerchantConnectorAccount, error) {
	return s.repo.List(ctx, nil, merchantID)
}

func (s *Service) ListActive(ctx context.Context, merchantID snowflake.ID, connectorName string) ([]domain.MerchantConnectorAccount, error) {
	return s.repo.ListActive(ctx, nil, merchantID, connectorName)
}

func (s *Service) Update(ctx context.Context, merchantID, id snowflake.ID, input domain.UpdateInput) (*domain.MerchantConnectorAccount, error) {
	mca, err := s.Get(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}

	if input.ConnectorLabel != nil {
		label := strings.TrimSpace(*input.ConnectorLabel)
		if label == "" {
			return nil, fmt.Errorf("%w: connector_label is empty", domain.ErrInvalidDetails)
		}
		if label != mca.ConnectorLabel {
			other, err := s.repo.FindByLabel(ctx, nil, merchantID, label)
			if err != nil {
				return nil, err
			}
			if other != nil {
				return nil, domain.ErrDuplicateLabel
			}
			mca.ConnectorLabel = label
		}
	}
	if len(input.AccountDetails) > 0 {
		data, err := s.registry.Convert(mca.ConnectorName)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidConnector, mca.ConnectorName)
		}
		auth, err := s.checkDetails(data.Connector, input.AccountDetails)
		if err != nil {
			return nil, err
		}
		encrypted, err := s.encrypt(auth)
		if err != nil {
			return nil, err
		}
		mca.AuthKind = string(auth.Kind)
		mca.EncryptedDetails = encrypted
	}
	if input.TestMode != nil {
		mca.TestMode = *input.TestMode
	}
	if input.Disabled != nil {
		mca.Disabled = *input.Disabled
	}
	if input.Priority != nil {
		mca.Priority = *input.Priority
	}
	if input.Metadata != nil {
		metadata, err := encodeMetadata(input.Metadata)
		if err != nil {
			return nil, err
		}
		mca.Metadata = metadata
	}
	if input.PaymentMethodsEnabled != nil {
		methods, err := encodeMethods(*input.PaymentMethodsEnabled)
		if err != nil {
			return nil, err
		}
		mca.PaymentMethodsEnabled = methods
	}

	mca.UpdatedAt = s.clock.Now(ctx)
	if err := s.repo.Update(ctx, nil, mca); err != nil {
		return nil, err
	}
	return mca, nil
}

func (s *Service) Delete(ctx context.Context, merchantID, id snowflake.ID) error {
	if err := s.repo.Delete(ctx, nil, merchantID, id); err != nil {
		return err
	}
	s.log.Info("connector account deleted",
		zap.String("merchant_id", merchantID.String()),
		zap.String("id", id.String()),
	)
	return nil
}

func (s *Service) ResolveAuth(ctx context.Context, mca *domain.MerchantConnectorAccount) (connectordomain.ConnectorAuthType, error) {
	if mca == nil {
		return connectordomain.ConnectorAuthType{}, domain.ErrNotFound
	}
	plain, err := s.vault.Decrypt(mca.EncryptedDetails)
	if err != nil {
		return connectordomain.ConnectorAuthType{}, fmt.Errorf("decrypt connector account %s: %w", mca.ID, err)
	}
	auth, err := connectordomain.ParseAuthType(plain)
	if err != nil {
		return connectordomain.ConnectorAuthType{}, fmt.Errorf("%w: %w", domain.ErrInvalidDetails, err)
	}

	if r, ok := s.vault.(interface{ NeedsRotation([]byte) bool }); ok && r.NeedsRotation(mca.EncryptedDetails) {
		s.rotate(ctx, mca, plain)
	}
	return auth, nil
}

// rotate re-seals credentials under the current key. Failures only delay rotation.
func (s *Service) rotate(ctx context.Context, mca *domain.MerchantConnectorAccount, plain []byte) {
	sealed, err := s.vault.Encrypt(plain)
	if err != nil {
		s.log.Warn("re-encrypt connector account failed", zap.String("id", mca.ID.String()), zap.Error(err))
		return
	}
	mca.EncryptedDetails = sealed
	mca.UpdatedAt = s.clock.Now(ctx)
	if err := s.repo.Update(ctx, nil, mca); err != nil {
		s.log.Warn("persist rotated connector account failed", zap.String("id", mca.ID.String()), zap.Error(err))
		return
	}
	s.log.Info("connector account credentials rotated", zap.String("id", mca.ID.String()))
}

// checkDetails decodes account details and lets the connector confirm it can build its
// auth headers from them.
func (s *Service) checkDetails(c connectordomain.Connector, raw json.RawMessage) (connectordomain.ConnectorAuthType, error) {
	if len(raw) == 0 {
		return connectordomain.ConnectorAuthType{}, fmt.Errorf("%w: connector_account_details is required", domain.ErrInvalidDetails)
	}
	auth, err := connectordomain.ParseAuthType(raw)
	if err != nil {
		return connectordomain.ConnectorAuthType{}, fmt.Errorf("%w: %w", domain.ErrInvalidDetails, err)
	}
	if _, err := c.AuthHeaders(auth); err != nil {
		return connectordomain.ConnectorAuthType{}, fmt.Errorf("%w: %w", domain.ErrInvalidDetails, err)
	}
	return auth, nil
}

func (s *Service) encrypt(auth connectordomain.ConnectorAuthType) ([]byte, error) {
	plain, err := json.Marshal(auth)
	if err != nil {
		return nil, err
	}
	sealed, err := s.vault.Encrypt(plain)
	if err != nil {
		s.log.Error("failed to encrypt connector account details", zap.Error(err))
		return nil, err
	}
	return sealed, nil
}

func encodeMethods(methods []connectordomain.PaymentMethodType) (datatypes.JSON, error) {
	if len(methods) == 0 {
		return nil, nil
	}
	seen := make(map[connectordomain.PaymentMethodType]struct{}, len(methods))
	out := make([]connectordomain.PaymentMethodType, 0, len(methods))
	for _, m := range methods {
		switch m {
		case connectordomain.PaymentMethodCard, connectordomain.PaymentMethodWallet, connectordomain.PaymentMethodBankRedirect:
		default:
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPaymentMethod, m)
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func encodeMetadata(metadata map[string]any) (datatypes.JSON, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
