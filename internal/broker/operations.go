package broker

import "context"

// LoginResult reports whether the broker immediately authenticated (cookie
// restore) or requires a follow-up 2FA code.
type LoginResult struct {
	NeedsTwoFactor bool
}

// Login calls the broker child's login method. remember controls whether
// the broker persists a session cookie for try_restore_session.
func (b *Bridge) Login(ctx context.Context, phone, pin string, remember bool) (LoginResult, error) {
	result, err := b.Call(ctx, "login", map[string]interface{}{
		"phone": phone, "pin": pin, "remember": remember,
	})
	if err != nil {
		return LoginResult{}, err
	}
	needs, _ := result["needs_2fa"].(bool)
	return LoginResult{NeedsTwoFactor: needs}, nil
}

// SubmitTwoFactor submits a 4-digit SMS/app code. Valid only once Login has
// put the broker into a waiting-for-2FA state; the broker itself returns an
// error the caller maps to TR_2FA_INVALID if the code is wrong.
func (b *Bridge) SubmitTwoFactor(ctx context.Context, code string) error {
	_, err := b.Call(ctx, "submit_2fa", map[string]interface{}{"code": code})
	return err
}

// Logout clears the broker's session.
func (b *Bridge) Logout(ctx context.Context) error {
	_, err := b.Call(ctx, "logout", nil)
	return err
}

// Position is one broker-reported holding, exactly as returned over the
// wire before any local enrichment.
type Position struct {
	ISIN         string  `json:"isin"`
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	AverageCost  float64 `json:"average_cost"`
	CurrentPrice float64 `json:"current_price"`
}

// FetchPortfolio pulls the current position list from the broker. This is
// the only bridge call sync_portfolio is allowed to make.
func (b *Bridge) FetchPortfolio(ctx context.Context) ([]Position, error) {
	result, err := b.Call(ctx, "fetch_portfolio", nil)
	if err != nil {
		return nil, err
	}
	raw, _ := result["positions"].([]interface{})
	positions := make([]Position, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		positions = append(positions, Position{
			ISIN:         stringField(m, "isin"),
			Name:         stringField(m, "name"),
			Quantity:     floatField(m, "quantity"),
			AverageCost:  floatField(m, "average_cost"),
			CurrentPrice: floatField(m, "current_price"),
		})
	}
	return positions, nil
}

// TryRestoreSession asks the broker to attempt restoring a persisted
// session cookie without prompting for credentials. reports whether
// restoration succeeded.
func (b *Bridge) TryRestoreSession(ctx context.Context) (bool, error) {
	result, err := b.Call(ctx, "try_restore_session", nil)
	if err != nil {
		return false, err
	}
	restored, _ := result["restored"].(bool)
	return restored, nil
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func floatField(m map[string]interface{}, key string) float64 {
	f, _ := m[key].(float64)
	return f
}
