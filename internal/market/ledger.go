package market

import (
	"coinmarket/internal/misc"
	"coinmarket/internal/model"
	"context"
	"github.com/pkg/errors"
	"math"
	"strings"
)

type SellResult struct {
	Earned       int64        `json:"earned"`
	PricePerCoin int64        `json:"price_per_coin"`
	Member       model.Member `json:"member"`
}

// SellCoins converts amount coins into balance at the current price and records a SellLog.
func (s Service) SellCoins(ctx context.Context, email string, amount int64) (SellResult, error) {
	email = model.NormalizeEmail(email)
	if amount <= 0 {
		return SellResult{}, errors.Wrapf(ErrInvalidAmount, "amount must be positive, got: %d", amount)
	}

	var res SellResult
	err := s.runTx(ctx, "SellCoins", func(ctx context.Context) error {
		m, err := s.findMember(ctx, email)
		if err != nil {
			return err
		}
		if amount > m.Coins {
			return errors.Wrapf(ErrInsufficientCoins, "selling %d coins, holding %d", amount, m.Coins)
		}
		p, err := s.CurrentPrice(ctx)
		if err != nil {
			return err
		}
		if amount > math.MaxInt64/p.Price {
			return errors.Wrapf(ErrInvalidAmount, "amount too large: %d", amount)
		}
		earned := amount * p.Price

		now := s.now()
		m.Coins -= amount
		m.Balance += earned
		m.LastModified = now
		if err = s.Store.MemberUpdateHoldings(ctx, m); err != nil {
			return err
		}
		_, err = s.Store.SellLogInsert(ctx, model.SellLog{
			Email:        email,
			Amount:       amount,
			PricePerCoin: p.Price,
			TotalEarned:  earned,
			Timestamp:    now,
		})
		if err != nil {
			return err
		}
		m.Version++
		res = SellResult{Earned: earned, PricePerCoin: p.Price, Member: m}
		return nil
	})
	if err != nil {
		s.Logger.Debugf("SellCoins: Sell of %d coins failed for email: %s, err: %v", amount, email, err)
		return SellResult{}, err
	}
	s.metrics().CoinsSold(amount, res.Earned)
	s.Logger.Infof("SellCoins: %s sold %d coins at %d for %d", email, amount, res.PricePerCoin, res.Earned)
	return res, nil
}

func (s Service) SellLogs(ctx context.Context, email string) ([]model.SellLog, error) {
	return s.Store.SellLogsFindByEmail(ctx, model.NormalizeEmail(email))
}

type CoinGrant struct {
	Email string `json:"email"`
	Delta int64  `json:"delta"`
	// MatchPrefix applies the grant to every member whose email starts with the local part of Email.
	MatchPrefix bool `json:"match_prefix"`
}

type CoinGrantResult struct {
	Email         string `json:"email"`
	PreviousCoins int64  `json:"previous_coins"`
	Coins         int64  `json:"coins"`
	Clamped       bool   `json:"clamped"`
}

// GrantCoins adds Delta coins to the matching members. A negative Delta revokes coins,
// holdings never drop below zero and Clamped reports when the full revocation did not fit.
func (s Service) GrantCoins(ctx context.Context, g CoinGrant) ([]CoinGrantResult, error) {
	email := model.NormalizeEmail(g.Email)
	if email == "" {
		return nil, ErrInvalidEmail
	}
	if g.Delta == 0 {
		return nil, errors.Wrap(ErrInvalidAmount, "delta must not be zero")
	}

	var results []CoinGrantResult
	err := s.runTx(ctx, "GrantCoins", func(ctx context.Context) error {
		results = nil
		ms, err := s.grantTargets(ctx, email, g.MatchPrefix)
		if err != nil {
			return err
		}
		now := s.now()
		for _, m := range ms {
			r := CoinGrantResult{Email: m.Email, PreviousCoins: m.Coins}
			r.Clamped = m.Coins+g.Delta < 0
			m.Coins = misc.Max(0, m.Coins+g.Delta)
			m.LastModified = now
			if err = s.Store.MemberUpdateHoldings(ctx, m); err != nil {
				return err
			}
			r.Coins = m.Coins
			results = append(results, r)
		}
		return nil
	})
	if err != nil {
		s.Logger.Debugf("GrantCoins: Grant of %d coins to %s failed, err: %v", g.Delta, email, err)
		return nil, err
	}
	for _, r := range results {
		if r.Clamped {
			s.Logger.Warnf("GrantCoins: Coins of %s clamped to 0, previous: %d, delta: %d", r.Email, r.PreviousCoins, g.Delta)
		}
	}
	s.metrics().CoinsGranted(g.Delta, len(results))
	s.Logger.Infof("GrantCoins: Applied delta %d to %d member(s) matching %s", g.Delta, len(results), email)
	return results, nil
}

func (s Service) grantTargets(ctx context.Context, email string, matchPrefix bool) ([]model.Member, error) {
	if !matchPrefix {
		m, err := s.findMember(ctx, email)
		if err != nil {
			return nil, err
		}
		return []model.Member{m}, nil
	}
	prefix, _, _ := strings.Cut(email, "@")
	if prefix == "" {
		return nil, ErrInvalidEmail
	}
	ms, err := s.Store.MembersFindByEmailPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "no member matches prefix: %s", prefix)
	}
	return ms, nil
}
