package risk

import (
	"context"
	"fmt"
	"time"
)

const (
	twoLossMultiplier   = 0.66
	threeLossMultiplier = 0.33
	lossesBeforeStop    = 5
)

// RecordTradeResult feeds a closed trade into drawdown protection.
// A win restores full size; repeated losses shrink it and five in a row stop
// entries for the cooldown period. Losses taken while stopped do not extend it.
func (m *Manager) RecordTradeResult(ctx context.Context, isWin bool) {
	m.mu.Lock()
	if isWin {
		m.consecutiveLosses = 0
		m.positionSizeMultiplier = 1.0
		m.mu.Unlock()
		return
	}

	m.consecutiveLosses++
	losses := m.consecutiveLosses
	switch {
	case losses >= 3:
		m.positionSizeMultiplier = threeLossMultiplier
	case losses >= 2:
		m.positionSizeMultiplier = twoLossMultiplier
	}
	mult := m.positionSizeMultiplier
	// a stop already in force keeps its original cooldown
	trigger := losses >= lossesBeforeStop && !m.emergencyStop
	if trigger {
		m.emergencyStop = true
	}
	m.mu.Unlock()

	if losses >= 2 {
		m.logger.Warning("Drawdown protection: %d consecutive losses, position size %.1f%%",
			losses, m.cfg.BasePositionSizePercent*mult)
	}
	if trigger {
		m.TriggerEmergencyStop(ctx, fmt.Sprintf("%d consecutive losses - pausing trading for %s", losses, m.cfg.EmergencyCooldown))
		m.scheduleCooldown()
	}
}

// scheduleCooldown arms the one-shot timer that lifts a loss-streak stop.
func (m *Manager) scheduleCooldown() {
	d := m.cfg.EmergencyCooldown
	if d <= 0 {
		d = time.Hour
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCooldownLocked()
	gen := m.cooldownGen
	m.cooldown = time.AfterFunc(d, func() { m.endCooldown(gen) })
}

// stopCooldownLocked cancels a pending cooldown; a timer already firing sees a stale generation.
func (m *Manager) stopCooldownLocked() {
	if m.cooldown != nil {
		m.cooldown.Stop()
		m.cooldown = nil
	}
	m.cooldownGen++
}

func (m *Manager) endCooldown(gen uint64) {
	m.mu.Lock()
	if gen != m.cooldownGen {
		m.mu.Unlock()
		return
	}
	m.cooldown = nil
	m.emergencyStop = false
	m.consecutiveLosses = 0
	m.positionSizeMultiplier = 1.0
	m.mu.Unlock()

	m.logger.Info("Emergency cooldown elapsed, trading re-enabled")
}

// UpdateSentiment sets the overall market sentiment score (0-100)
func (m *Manager) UpdateSentiment(overall float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentiment = &overall
}

// SentimentMultiplier maps the sentiment score onto a size multiplier
func (m *Manager) SentimentMultiplier() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sentimentMultiplierLocked()
}

func (m *Manager) sentimentMultiplierLocked() float64 {
	if m.sentiment == nil {
		return 1.0
	}
	return SentimentMultiplier(*m.sentiment)
}

// SentimentMultiplier is the step function from sentiment score to size multiplier.
func SentimentMultiplier(overall float64) float64 {
	switch {
	case overall >= 70:
		return 1.2
	case overall >= 60:
		return 1.1
	case overall >= 40:
		return 1.0
	case overall >= 30:
		return 0.8
	default:
		return 0.6
	}
}
