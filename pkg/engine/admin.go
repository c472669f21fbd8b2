package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Administrative surface. All entry points are owner-gated except
// pause/unpause, which the emergency admin may also call.

func (e *Engine) requireOwner(caller common.Address) error {
	if caller != e.owner {
		return fmt.Errorf("%w: owner only", ErrUnauthorized)
	}
	return nil
}

func (e *Engine) requirePauser(caller common.Address) error {
	if caller != e.owner && caller != e.emergencyAdmin {
		return fmt.Errorf("%w: owner or emergency admin only", ErrUnauthorized)
	}
	return nil
}

// Pause blocks order creation. Execute, fill, update and cancel stay
// available so funds are never trapped.
func (e *Engine) Pause(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requirePauser(caller); err != nil {
		return err
	}
	e.paused = true
	e.log.Warnw("engine_paused", "by", caller.Hex())
	return nil
}

func (e *Engine) Unpause(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requirePauser(caller); err != nil {
		return err
	}
	e.paused = false
	e.log.Infow("engine_unpaused", "by", caller.Hex())
	return nil
}

// AddWhitelistTokens opens tokens for deposits.
func (e *Engine) AddWhitelistTokens(caller common.Address, tokens []common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	for _, tok := range tokens {
		if _, err := e.tokens.Token(tok); err != nil {
			return err
		}
		e.whitelisted[tok] = true
	}
	return nil
}

// RemoveWhitelistTokens blocks new deposits of tokens. Existing orders
// are unaffected.
func (e *Engine) RemoveWhitelistTokens(caller common.Address, tokens []common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	for _, tok := range tokens {
		delete(e.whitelisted, tok)
	}
	return nil
}

// IsWhitelisted reports whether a token accepts new orders.
func (e *Engine) IsWhitelisted(tok common.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.whitelisted[tok]
}

// AddHandler registers a swap handler for order execution.
func (e *Engine) AddHandler(caller common.Address, h Handler) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("handler: %w", ErrZeroAddress)
	}
	e.handlers[h.Address()] = h
	return nil
}

func (e *Engine) RemoveHandler(caller common.Address, addr common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	delete(e.handlers, addr)
	return nil
}

// ApproveExecutors allows addresses to settle wildcard-executor orders.
func (e *Engine) ApproveExecutors(caller common.Address, executors []common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	for _, x := range executors {
		e.executors[x] = true
	}
	return nil
}

func (e *Engine) RevokeExecutors(caller common.Address, executors []common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	for _, x := range executors {
		delete(e.executors, x)
	}
	return nil
}

// UpdateTokensBuffer sets idle-reserve targets in basis points. The
// new target takes effect on the next rebalance; order operations
// never trigger one implicitly.
func (e *Engine) UpdateTokensBuffer(caller common.Address, tokens []common.Address, bufferBps []uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if len(tokens) != len(bufferBps) {
		return fmt.Errorf("tokens/buffers length mismatch: %d vs %d", len(tokens), len(bufferBps))
	}
	for _, bps := range bufferBps {
		if bps > bpsDenominator {
			return fmt.Errorf("buffer %d exceeds %d bps", bps, bpsDenominator)
		}
	}
	for i, tok := range tokens {
		e.poolFor(tok).bufferBps = bufferBps[i]
		if err := e.persistPool(tok); err != nil {
			e.log.Errorw("pool_persist_failed", "err", err, "token", tok.Hex())
		}
	}
	return nil
}

// UpdateProtocolFee sets the execution-time treasury cut in basis points.
func (e *Engine) UpdateProtocolFee(caller common.Address, bps uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if bps > bpsDenominator {
		return fmt.Errorf("protocol fee %d exceeds %d bps", bps, bpsDenominator)
	}
	e.protocolFeeBps = bps
	return nil
}

// UpdateCancellationFee sets the yield cut charged on cancellation.
func (e *Engine) UpdateCancellationFee(caller common.Address, bps uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if bps > bpsDenominator {
		return fmt.Errorf("cancellation fee %d exceeds %d bps", bps, bpsDenominator)
	}
	e.cancellationBps = bps
	return nil
}

// UpdateTreasury changes the fee destination. The zero address
// disables fee collection entirely.
func (e *Engine) UpdateTreasury(caller common.Address, treasury common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.treasury = treasury
	return nil
}

// UpdateEmergencyAdmin rotates the pause authority.
func (e *Engine) UpdateEmergencyAdmin(caller common.Address, admin common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.emergencyAdmin = admin
	return nil
}
