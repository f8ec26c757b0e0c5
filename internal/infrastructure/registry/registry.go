// Package registry is the database-backed asset-identity registry. It holds
// the custody record of the stewarded token and only lets the steward move it.
package registry

import (
	"context"
	"errors"
	"fmt"

	"steward-backend/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

var (
	ErrNotSteward    = errors.New("transfer caller is not steward")
	ErrTokenNotFound = errors.New("token not found")
	ErrNotOwner      = errors.New("transfer from incorrect owner")
	ErrAlreadyMinted = errors.New("token already minted")
)

// Registry tracks the owner of one token. Operator is the only address
// allowed to transfer it.
type Registry struct {
	DB       *gorm.DB
	TokenID  uint64
	Operator common.Address
}

// New returns a registry bound to db, which may be a transaction handle.
func New(db *gorm.DB, tokenID uint64, operator common.Address) *Registry {
	return &Registry{DB: db, TokenID: tokenID, Operator: operator}
}

// Mint creates the token owned by to.
func (r *Registry) Mint(ctx context.Context, to common.Address, uri string) error {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&domain.Token{}).Where("token_id = ?", r.TokenID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrAlreadyMinted
	}
	return r.DB.WithContext(ctx).Create(&domain.Token{
		TokenID: r.TokenID,
		Owner:   to.Hex(),
		URI:     uri,
	}).Error
}

// OwnerOf returns the current owner.
func (r *Registry) OwnerOf(ctx context.Context) (common.Address, error) {
	tok, err := r.token(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(tok.Owner), nil
}

// URI returns the token metadata URI.
func (r *Registry) URI(ctx context.Context) (string, error) {
	tok, err := r.token(ctx)
	if err != nil {
		return "", err
	}
	return tok.URI, nil
}

// TransferFrom moves the token from -> to on behalf of caller.
func (r *Registry) TransferFrom(ctx context.Context, caller, from, to common.Address) error {
	if caller != r.Operator {
		return ErrNotSteward
	}
	tok, err := r.token(ctx)
	if err != nil {
		return err
	}
	if common.HexToAddress(tok.Owner) != from {
		return fmt.Errorf("%w: owner is %s", ErrNotOwner, tok.Owner)
	}
	return r.DB.WithContext(ctx).Model(&domain.Token{}).
		Where("token_id = ?", r.TokenID).
		Update("owner", to.Hex()).Error
}

func (r *Registry) token(ctx context.Context) (*domain.Token, error) {
	var tok domain.Token
	if err := r.DB.WithContext(ctx).Where("token_id = ?", r.TokenID).First(&tok).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &tok, nil
}

// Custodian is the steward's view of the registry: every transfer is issued
// by the operator.
type Custodian struct {
	Registry *Registry
}

func (c Custodian) Transfer(ctx context.Context, from, to common.Address) error {
	return c.Registry.TransferFrom(ctx, c.Registry.Operator, from, to)
}

func (c Custodian) OwnerOf(ctx context.Context) (common.Address, error) {
	return c.Registry.OwnerOf(ctx)
}
