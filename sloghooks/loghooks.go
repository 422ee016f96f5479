package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/surgekit/surge"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery   uint64
	ContentionEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr   atomic.Uint64
	contentionCtr atomic.Uint64
}

var _ surge.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("surge.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) AbsenceCached(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Debug("surge.absence_cached",
		"key", h.redact(storageKey))
}

func (h *Hooks) RebuildScheduled(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Debug("surge.rebuild_scheduled",
		"key", h.redact(storageKey))
}

func (h *Hooks) RebuildFailed(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("surge.rebuild_failed",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) RebuildRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("surge.rebuild_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) LockContended(storageKey string) {
	if h.l == nil || !sample(h.opts.ContentionEvery, &h.contentionCtr) {
		return
	}
	h.l.Debug("surge.lock_contended",
		"key", h.redact(storageKey))
}
