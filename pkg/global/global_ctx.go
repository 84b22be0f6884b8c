package global

import (
	"github.com/solopool-labs/solopool/pkg/accounts"
	"github.com/solopool-labs/solopool/pkg/features"
)

type GlobalCtx struct {
	Accounts *accounts.Accounts
	Leader   [32]byte
	Features features.Features
}

func NewGlobalCtxDefault() *GlobalCtx {
	features := features.NewFeaturesDefault()
	return &GlobalCtx{Features: *features}
}
