package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxOriginIDKey = "origin_id" // string
)

// originトークンの発行と検証
type OriginTokens struct {
	secret []byte
	ttl    time.Duration
}

func NewOriginTokens(secret string, ttl time.Duration) *OriginTokens {
	return &OriginTokens{secret: []byte(secret), ttl: ttl}
}

// Issue はoriginIDをsubに入れたHS256トークンを作る。
func (o *OriginTokens) Issue(originID string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(o.ttl)

	claims := jwt.MapClaims{
		"sub": originID,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(o.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// bearerAuth用のJWT検証ミドルウェア。
func (o *OriginTokens) AuthJWT() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//Authorizationヘッダを取得
			authz := c.Request().Header.Get("Authorization")
			if authz == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//Bearer形式か確認してtokenを抜く
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			rawToken := strings.TrimSpace(parts[1])
			if rawToken == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//JWTをパースして検証する
			token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
				if t.Method != jwt.SigningMethodHS256 {
					return nil, errors.New("unexpected signing method")
				}
				return o.secret, nil
			})
			if err != nil || token == nil || !token.Valid {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//claimsを取り出す
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//origin_idを取り出す
			originID, ok := claims["sub"].(string)
			if !ok || originID == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//contextへ保存
			c.Set(CtxOriginIDKey, originID)

			return next(c)
		}
	}
}

// AuthJWTが入れたorigin_idを取り出す
func OriginIDFromContext(c echo.Context) (string, bool) {
	v, ok := c.Get(CtxOriginIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}
