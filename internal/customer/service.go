package customer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Prjsupa/vivero-api/internal/common"
	"github.com/Prjsupa/vivero-api/internal/fiscal"
	"github.com/Prjsupa/vivero-api/internal/store"
)

// Querier is the subset of store queries the customer module needs.
type Querier interface {
	ListCustomers(ctx context.Context, limit, offset int32) ([]store.Customer, error)
	CountCustomers(ctx context.Context) (int64, error)
	GetCustomer(ctx context.Context, id pgtype.UUID) (store.Customer, error)
	CreateCustomer(ctx context.Context, arg store.CreateCustomerParams) (store.Customer, error)
	UpdateCustomer(ctx context.Context, arg store.UpdateCustomerParams) (store.Customer, error)
	DeleteCustomer(ctx context.Context, id pgtype.UUID) error
}

// Service orchestrates customer records.
type Service struct {
	Q Querier
}

// DTO is the API representation of a customer.
type DTO struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	DocNumber       *string `json:"docNumber,omitempty"`
	Email           *string `json:"email,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	Address         *string `json:"address,omitempty"`
	FiscalCondition string  `json:"fiscalCondition"`
}

// Input is the create/update payload for a customer.
type Input struct {
	Name            string  `json:"name" validate:"required"`
	DocNumber       *string `json:"docNumber"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Phone           *string `json:"phone"`
	Address         *string `json:"address"`
	FiscalCondition string  `json:"fiscalCondition"`
}

// List returns a page of customers with the total count.
func (s *Service) List(ctx context.Context, page, perPage int) ([]DTO, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	rows, err := s.Q.ListCustomers(ctx, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	total, err := s.Q.CountCustomers(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}
	out := make([]DTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, total, nil
}

// Get returns one customer by id.
func (s *Service) Get(ctx context.Context, id string) (DTO, error) {
	pgID, err := parseID(id)
	if err != nil {
		return DTO{}, err
	}
	row, err := s.Q.GetCustomer(ctx, pgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DTO{}, common.NewAppError(common.CodeNotFound, "customer not found", http.StatusNotFound, err)
		}
		return DTO{}, fmt.Errorf("get customer: %w", err)
	}
	return toDTO(row), nil
}

// Create inserts a customer.
func (s *Service) Create(ctx context.Context, in Input) (DTO, error) {
	cond, err := normalizeCondition(in.FiscalCondition)
	if err != nil {
		return DTO{}, err
	}
	row, err := s.Q.CreateCustomer(ctx, store.CreateCustomerParams{
		Name:            strings.TrimSpace(in.Name),
		DocNumber:       optionalText(in.DocNumber),
		Email:           optionalText(in.Email),
		Phone:           optionalText(in.Phone),
		Address:         optionalText(in.Address),
		FiscalCondition: string(cond),
	})
	if err != nil {
		return DTO{}, fmt.Errorf("create customer: %w", err)
	}
	return toDTO(row), nil
}

// Update overwrites a customer.
func (s *Service) Update(ctx context.Context, id string, in Input) (DTO, error) {
	pgID, err := parseID(id)
	if err != nil {
		return DTO{}, err
	}
	cond, err := normalizeCondition(in.FiscalCondition)
	if err != nil {
		return DTO{}, err
	}
	row, err := s.Q.UpdateCustomer(ctx, store.UpdateCustomerParams{
		ID:              pgID,
		Name:            strings.TrimSpace(in.Name),
		DocNumber:       optionalText(in.DocNumber),
		Email:           optionalText(in.Email),
		Phone:           optionalText(in.Phone),
		Address:         optionalText(in.Address),
		FiscalCondition: string(cond),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DTO{}, common.NewAppError(common.CodeNotFound, "customer not found", http.StatusNotFound, err)
		}
		return DTO{}, fmt.Errorf("update customer: %w", err)
	}
	return toDTO(row), nil
}

// Delete removes a customer.
func (s *Service) Delete(ctx context.Context, id string) error {
	pgID, err := parseID(id)
	if err != nil {
		return err
	}
	if err := s.Q.DeleteCustomer(ctx, pgID); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	return nil
}

func normalizeCondition(raw string) (fiscal.Condition, error) {
	cond := fiscal.Condition(strings.TrimSpace(strings.ToLower(raw)))
	if cond == "" {
		return fiscal.ConsumidorFinal, nil
	}
	if !cond.Valid() {
		return "", common.NewAppError(common.CodeValidation, "unknown fiscal condition", http.StatusBadRequest, nil)
	}
	return cond, nil
}

func toDTO(row store.Customer) DTO {
	return DTO{
		ID:              uuid.UUID(row.ID.Bytes).String(),
		Name:            row.Name,
		DocNumber:       textPtr(row.DocNumber),
		Email:           textPtr(row.Email),
		Phone:           textPtr(row.Phone),
		Address:         textPtr(row.Address),
		FiscalCondition: row.FiscalCondition,
	}
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func optionalText(ptr *string) pgtype.Text {
	if ptr == nil || strings.TrimSpace(*ptr) == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: strings.TrimSpace(*ptr), Valid: true}
}

func parseID(raw string) (pgtype.UUID, error) {
	u, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return pgtype.UUID{}, common.NewAppError(common.CodeValidation, "id must be a valid UUID", http.StatusBadRequest, err)
	}
	return pgtype.UUID{Bytes: u, Valid: true}, nil
}
