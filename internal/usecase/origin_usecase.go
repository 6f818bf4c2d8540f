package usecase

import (
	"context"
	"net/http"
	"time"
)

// originトークンを発行する約束
type OriginTokenIssuer interface {
	Issue(originID string, now time.Time) (token string, expiresAt time.Time, err error)
}

// POST /origins の出力
type OriginOutput struct {
	OriginID  string    `json:"origin_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OriginUsecase はブラウザのoriginに当たるIDを払い出す。
// 同じoriginのタブ同士だけがストレージを共有する。
type OriginUsecase struct {
	issuer OriginTokenIssuer
	idGen  IDGenerator
	clock  Clock
}

// DI
func NewOriginUsecase(issuer OriginTokenIssuer, idGen IDGenerator, clock Clock) *OriginUsecase {
	return &OriginUsecase{issuer: issuer, idGen: idGen, clock: clock}
}

func (u *OriginUsecase) Issue(ctx context.Context) (OriginOutput, error) {
	originID := u.idGen.NewID()
	token, exp, err := u.issuer.Issue(originID, u.clock.Now())
	if err != nil {
		return OriginOutput{}, NewHTTPError(http.StatusInternalServerError, "token error")
	}
	return OriginOutput{OriginID: originID, Token: token, ExpiresAt: exp}, nil
}
