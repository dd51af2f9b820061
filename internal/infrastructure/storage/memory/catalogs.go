package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"tally/internal/core/apperror"
	"tally/internal/core/id"
	"tally/internal/core/types"
	"tally/internal/domain/catalogs/accounts"
	"tally/internal/domain/catalogs/partners"
	"tally/internal/domain/catalogs/products"
)

// --- Accounts ---

type accountRepo struct{ s *Store }

func (r accountRepo) Create(_ context.Context, a *accounts.Account) error {
	st, unlock := r.s.write()
	defer unlock()

	if _, exists := st.accounts[a.ID]; exists {
		return apperror.NewConflict("account already exists").WithDetail("id", a.ID)
	}
	c := *a
	st.accounts[a.ID] = &c
	return nil
}

func (r accountRepo) get(st *state, companyID, accountID id.ID) (*accounts.Account, error) {
	a, ok := st.accounts[accountID]
	if !ok || !a.BelongsTo(companyID) {
		return nil, apperror.NewNotFound("account", accountID)
	}
	return a, nil
}

func (r accountRepo) GetByID(_ context.Context, companyID, accountID id.ID) (*accounts.Account, error) {
	st, unlock := r.s.read()
	defer unlock()

	a, err := r.get(st, companyID, accountID)
	if err != nil {
		return nil, err
	}
	c := *a
	return &c, nil
}

func (r accountRepo) GetForUpdate(ctx context.Context, companyID, accountID id.ID) (*accounts.Account, error) {
	return r.GetByID(ctx, companyID, accountID)
}

// Update writes descriptive fields; the cached balance is left untouched.
func (r accountRepo) Update(_ context.Context, a *accounts.Account) error {
	st, unlock := r.s.write()
	defer unlock()

	cur, err := r.get(st, a.CompanyID, a.ID)
	if err != nil {
		return err
	}
	if cur.Version != a.Version {
		return apperror.NewConcurrentModification("account", a.ID)
	}
	c := *a
	c.Balance = cur.Balance
	c.Version = cur.Version + 1
	c.UpdatedAt = time.Now().UTC()
	st.accounts[a.ID] = &c
	a.SetVersion(c.Version)
	return nil
}

func (r accountRepo) Delete(_ context.Context, companyID, accountID id.ID) error {
	st, unlock := r.s.write()
	defer unlock()

	if _, err := r.get(st, companyID, accountID); err != nil {
		return err
	}
	delete(st.accounts, accountID)
	return nil
}

func (r accountRepo) AdjustBalance(_ context.Context, companyID, accountID id.ID, delta types.Money) error {
	st, unlock := r.s.write()
	defer unlock()

	a, err := r.get(st, companyID, accountID)
	if err != nil {
		return err
	}
	c := *a
	c.Balance = types.RoundMoney(c.Balance.Add(delta))
	st.accounts[accountID] = &c
	return nil
}

func (r accountRepo) SetBalance(_ context.Context, companyID, accountID id.ID, balance types.Money) error {
	st, unlock := r.s.write()
	defer unlock()

	a, err := r.get(st, companyID, accountID)
	if err != nil {
		return err
	}
	c := *a
	c.Balance = balance
	st.accounts[accountID] = &c
	return nil
}

func (r accountRepo) LockBalance(_ context.Context, companyID, accountID id.ID) (types.Money, error) {
	st, unlock := r.s.read()
	defer unlock()

	a, err := r.get(st, companyID, accountID)
	if err != nil {
		return types.Zero(), err
	}
	return a.Balance, nil
}

func (r accountRepo) ListIDs(ctx context.Context, companyID id.ID) ([]id.ID, error) {
	list, err := r.List(ctx, companyID)
	if err != nil {
		return nil, err
	}
	ids := make([]id.ID, len(list))
	for i, a := range list {
		ids[i] = a.ID
	}
	return ids, nil
}

// List returns the company's accounts ordered by name.
func (r accountRepo) List(_ context.Context, companyID id.ID) ([]*accounts.Account, error) {
	st, unlock := r.s.read()
	defer unlock()

	var out []*accounts.Account
	for _, a := range st.accounts {
		if a.BelongsTo(companyID) {
			c := *a
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *accounts.Account) int {
		if n := strings.Compare(a.Name, b.Name); n != 0 {
			return n
		}
		return compareIDs(a.ID, b.ID)
	})
	return out, nil
}

// --- Partners ---

type partnerRepo struct{ s *Store }

func (r partnerRepo) Create(_ context.Context, p *partners.Partner) error {
	st, unlock := r.s.write()
	defer unlock()

	if _, exists := st.partners[p.Ref()]; exists {
		return apperror.NewConflict("partner already exists").WithDetail("id", p.ID)
	}
	c := *p
	st.partners[p.Ref()] = &c
	return nil
}

func (r partnerRepo) get(st *state, companyID id.ID, ref partners.Ref) (*partners.Partner, error) {
	p, ok := st.partners[ref]
	if !ok || !p.BelongsTo(companyID) {
		return nil, apperror.NewNotFound(string(ref.Kind), ref.ID)
	}
	return p, nil
}

func (r partnerRepo) GetByID(_ context.Context, companyID id.ID, ref partners.Ref) (*partners.Partner, error) {
	st, unlock := r.s.read()
	defer unlock()

	p, err := r.get(st, companyID, ref)
	if err != nil {
		return nil, err
	}
	c := *p
	return &c, nil
}

func (r partnerRepo) GetForUpdate(ctx context.Context, companyID id.ID, ref partners.Ref) (*partners.Partner, error) {
	return r.GetByID(ctx, companyID, ref)
}

func (r partnerRepo) FindByEmail(_ context.Context, companyID id.ID, kind partners.Kind, email string) (*partners.Partner, error) {
	st, unlock := r.s.read()
	defer unlock()

	for _, p := range st.partners {
		if p.BelongsTo(companyID) && p.Kind == kind && strings.EqualFold(p.Email, email) {
			c := *p
			return &c, nil
		}
	}
	return nil, apperror.NewNotFound(string(kind), email)
}

func (r partnerRepo) Delete(_ context.Context, companyID id.ID, ref partners.Ref) error {
	st, unlock := r.s.write()
	defer unlock()

	if _, err := r.get(st, companyID, ref); err != nil {
		return err
	}
	delete(st.partners, ref)
	return nil
}

func (r partnerRepo) AdjustBalance(_ context.Context, companyID id.ID, ref partners.Ref, delta types.Money) error {
	st, unlock := r.s.write()
	defer unlock()

	p, err := r.get(st, companyID, ref)
	if err != nil {
		return err
	}
	c := *p
	c.Balance = types.RoundMoney(c.Balance.Add(delta))
	st.partners[ref] = &c
	return nil
}

func (r partnerRepo) SetBalance(_ context.Context, companyID id.ID, ref partners.Ref, balance types.Money) error {
	st, unlock := r.s.write()
	defer unlock()

	p, err := r.get(st, companyID, ref)
	if err != nil {
		return err
	}
	c := *p
	c.Balance = balance
	st.partners[ref] = &c
	return nil
}

func (r partnerRepo) LockBalance(_ context.Context, companyID id.ID, ref partners.Ref) (types.Money, error) {
	st, unlock := r.s.read()
	defer unlock()

	p, err := r.get(st, companyID, ref)
	if err != nil {
		return types.Zero(), err
	}
	return p.Balance, nil
}

// ListRefs returns customers first, then suppliers, each ordered by id.
func (r partnerRepo) ListRefs(_ context.Context, companyID id.ID) ([]partners.Ref, error) {
	st, unlock := r.s.read()
	defer unlock()

	var refs []partners.Ref
	for ref, p := range st.partners {
		if p.BelongsTo(companyID) {
			refs = append(refs, ref)
		}
	}
	slices.SortFunc(refs, func(a, b partners.Ref) int {
		if n := strings.Compare(string(a.Kind), string(b.Kind)); n != 0 {
			return n
		}
		return compareIDs(a.ID, b.ID)
	})
	return refs, nil
}

// --- Products ---

type productRepo struct{ s *Store }

func (r productRepo) Create(_ context.Context, p *products.Product) error {
	st, unlock := r.s.write()
	defer unlock()

	if _, exists := st.products[p.ID]; exists {
		return apperror.NewConflict("product already exists").WithDetail("id", p.ID)
	}
	c := *p
	st.products[p.ID] = &c
	return nil
}

func (r productRepo) get(st *state, companyID, productID id.ID) (*products.Product, error) {
	p, ok := st.products[productID]
	if !ok || !p.BelongsTo(companyID) {
		return nil, apperror.NewNotFound("product", productID)
	}
	return p, nil
}

func (r productRepo) GetByID(_ context.Context, companyID, productID id.ID) (*products.Product, error) {
	st, unlock := r.s.read()
	defer unlock()

	p, err := r.get(st, companyID, productID)
	if err != nil {
		return nil, err
	}
	c := *p
	return &c, nil
}

func (r productRepo) GetForUpdate(ctx context.Context, companyID, productID id.ID) (*products.Product, error) {
	return r.GetByID(ctx, companyID, productID)
}

func (r productRepo) SetQuantity(_ context.Context, companyID, productID id.ID, qty types.Quantity) error {
	st, unlock := r.s.write()
	defer unlock()

	p, err := r.get(st, companyID, productID)
	if err != nil {
		return err
	}
	c := *p
	c.Quantity = qty
	st.products[productID] = &c
	return nil
}
