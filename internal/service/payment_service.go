package service

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"trialdesk/internal/domain"
	"trialdesk/internal/events"
	"trialdesk/internal/models"

	"github.com/rs/zerolog"
)

// IncompleteSelectionError blocks payment-link creation while any student in
// the family still has no package selection.
type IncompleteSelectionError struct {
	FamilyGroupID     string
	MissingStudentIDs []int64
}

func (e *IncompleteSelectionError) Error() string {
	return fmt.Sprintf("family %s selection incomplete: %d student(s) missing a package",
		e.FamilyGroupID, len(e.MissingStudentIDs))
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// PaymentService is the family payment aggregator: it locks one currency per
// family group, collects per-student package selections across the
// asynchronous UI flow, and computes a consistent total before asking the
// external provider for a checkout link. Amounts are minor units throughout.
type PaymentService struct {
	flows     domain.FlowRepository
	repo      domain.Repository
	packages  map[int64]models.Package
	provider  domain.PaymentProvider
	lifecycle *LifecycleService
	eventBus  domain.EventPublisher
	logger    *zerolog.Logger

	// Serializes flow read-modify-write per process; the flow store itself
	// is last-write-wins.
	mu sync.Mutex
}

func NewPaymentService(flows domain.FlowRepository, repo domain.Repository, packages []models.Package,
	provider domain.PaymentProvider, lifecycle *LifecycleService, eventBus domain.EventPublisher,
	logger *zerolog.Logger) *PaymentService {
	catalog := make(map[int64]models.Package, len(packages))
	for _, p := range packages {
		catalog[p.ID] = p
	}
	return &PaymentService{
		flows:     flows,
		repo:      repo,
		packages:  catalog,
		provider:  provider,
		lifecycle: lifecycle,
		eventBus:  eventBus,
		logger:    logger,
	}
}

// SelectCurrency locks the family's currency. The code is normalized to upper
// case first, so "usd" and "USD" are the same lock. Locking the same code
// again is an idempotent no-op; a different code fails with
// ErrCurrencyAlreadyLocked.
func (s *PaymentService) SelectCurrency(ctx context.Context, familyID, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !currencyPattern.MatchString(code) {
		return fmt.Errorf("invalid currency code: %q", code)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	flow, err := s.getOrCreateFlow(ctx, familyID)
	if err != nil {
		return err
	}

	switch flow.Currency {
	case "":
		flow.Currency = code
	case code:
		return nil
	default:
		return fmt.Errorf("%w: %s is locked, got %s", ErrCurrencyAlreadyLocked, flow.Currency, code)
	}

	flow.UpdatedAt = time.Now()
	return s.flows.SetFlow(ctx, flow)
}

// UpsertSelection records or replaces one student's package choice. Allowed
// any time before final submission; the locked currency must still be set.
func (s *PaymentService) UpsertSelection(ctx context.Context, familyID string, sel models.PackageSelection) error {
	if !sel.UseCustomPrice {
		pkg, ok := s.packages[sel.PackageID]
		if !ok || !pkg.IsActive {
			return fmt.Errorf("%w: %d", ErrPackageNotFound, sel.PackageID)
		}
	} else if sel.CustomPrice <= 0 {
		return fmt.Errorf("custom price must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	flow, err := s.flows.GetFlow(ctx, familyID)
	if err != nil {
		return err
	}
	if flow == nil || flow.Currency == "" {
		return ErrNoCurrencyLocked
	}

	if flow.Selections == nil {
		flow.Selections = make(map[int64]models.PackageSelection)
	}
	flow.Selections[sel.StudentID] = sel
	flow.UpdatedAt = time.Now()
	return s.flows.SetFlow(ctx, flow)
}

// Total sums the family's selections: custom price when set, catalog price
// otherwise. Order of selection never changes the result.
func (s *PaymentService) Total(ctx context.Context, familyID string) (int64, string, error) {
	flow, err := s.flows.GetFlow(ctx, familyID)
	if err != nil {
		return 0, "", err
	}
	if flow == nil {
		return 0, "", ErrNoCurrencyLocked
	}

	var total int64
	for _, sel := range flow.Selections {
		amount, err := s.selectionAmount(sel)
		if err != nil {
			return 0, "", err
		}
		total += amount
	}
	return total, flow.Currency, nil
}

// Validate reports whether every student in the family has a selection.
func (s *PaymentService) Validate(ctx context.Context, familyID string) (*models.FamilyValidation, error) {
	bookings, err := s.repo.GetFamilyBookings(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, ErrFamilyNotFound
	}

	flow, err := s.flows.GetFlow(ctx, familyID)
	if err != nil {
		return nil, err
	}

	var missing []int64
	for _, b := range bookings {
		if _, ok := flow.Selection(b.StudentID); !ok {
			missing = append(missing, b.StudentID)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })

	return &models.FamilyValidation{
		IsComplete:        len(missing) == 0,
		MissingCount:      len(missing),
		MissingStudentIDs: missing,
	}, nil
}

// CreateFamilyPaymentLink validates completeness, asks the provider for a
// checkout link over the family total, and moves every member to
// awaiting-payment. The flow state stays until payment confirmation clears it.
func (s *PaymentService) CreateFamilyPaymentLink(ctx context.Context, familyID string) (*models.PaymentLink, error) {
	validation, err := s.Validate(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if !validation.IsComplete {
		return nil, &IncompleteSelectionError{
			FamilyGroupID:     familyID,
			MissingStudentIDs: validation.MissingStudentIDs,
		}
	}

	total, currency, err := s.Total(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if currency == "" {
		return nil, ErrNoCurrencyLocked
	}

	link, err := s.provider.CreatePaymentLink(ctx, models.PaymentRequest{
		Amount:   total,
		Currency: currency,
		FamilyID: familyID,
		Metadata: map[string]string{"kind": "family"},
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.lifecycle.AttemptFamilyTransition(ctx, familyID, EventSalesCreatesPaymentLink,
		TransitionPayload{SelectionComplete: true}); err != nil {
		return nil, err
	}

	s.publishLinkRequested(familyID, 0, total, currency, link.Reference)
	return link, nil
}

// CreateBookingPaymentLink covers the individual (non-family) path: one
// student, one package pick, currency supplied directly.
func (s *PaymentService) CreateBookingPaymentLink(ctx context.Context, bookingID int64, sel models.PackageSelection, currency string) (*models.PaymentLink, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !currencyPattern.MatchString(currency) {
		return nil, fmt.Errorf("invalid currency code: %q", currency)
	}

	amount, err := s.selectionAmount(sel)
	if err != nil {
		return nil, err
	}

	link, err := s.provider.CreatePaymentLink(ctx, models.PaymentRequest{
		Amount:   amount,
		Currency: currency,
		Metadata: map[string]string{"kind": "individual", "booking_id": strconv.FormatInt(bookingID, 10)},
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.lifecycle.AttemptTransition(ctx, bookingID, EventSalesCreatesPaymentLink,
		TransitionPayload{SelectionComplete: true}); err != nil {
		return nil, err
	}

	s.publishLinkRequested("", bookingID, amount, currency, link.Reference)
	return link, nil
}

// ClearFlow drops a family's payment flow state, e.g. after confirmation.
func (s *PaymentService) ClearFlow(ctx context.Context, familyID string) error {
	return s.flows.ClearFlow(ctx, familyID)
}

func (s *PaymentService) selectionAmount(sel models.PackageSelection) (int64, error) {
	if sel.UseCustomPrice {
		if sel.CustomPrice <= 0 {
			return 0, fmt.Errorf("custom price must be positive")
		}
		return sel.CustomPrice, nil
	}
	pkg, ok := s.packages[sel.PackageID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrPackageNotFound, sel.PackageID)
	}
	return pkg.Price, nil
}

func (s *PaymentService) getOrCreateFlow(ctx context.Context, familyID string) (*models.FamilyPaymentFlow, error) {
	flow, err := s.flows.GetFlow(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if flow == nil {
		flow = &models.FamilyPaymentFlow{
			FamilyID:   familyID,
			Selections: make(map[int64]models.PackageSelection),
		}
	}
	return flow, nil
}

func (s *PaymentService) publishLinkRequested(familyID string, bookingID, amount int64, currency, reference string) {
	if s.eventBus == nil {
		return
	}
	payload := events.PaymentEventPayload{
		FamilyGroupID: familyID,
		BookingID:     bookingID,
		Amount:        amount,
		Currency:      currency,
		Reference:     reference,
	}
	if err := s.eventBus.PublishJSON(events.EventPaymentLinkRequested, payload); err != nil {
		s.logger.Error().Err(err).Str("family_id", familyID).Msg("publish payment event error")
	}
}
