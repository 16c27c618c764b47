package services

import (
	"cablenet/internal/auth"
	"cablenet/internal/config"
	"cablenet/internal/logger"
	model "cablenet/internal/models"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// maxSessions is the number of live refresh tokens kept per user.
const maxSessions = 2

type AuthService struct {
	db   *bun.DB
	jwt  *auth.JWTManager
	cfg  *config.Config
	logr *logger.Logger
}

func NewAuthService(db *bun.DB, jwt *auth.JWTManager, cfg *config.Config, logr *logger.Logger) *AuthService {
	return &AuthService{db: db, jwt: jwt, cfg: cfg, logr: logr}
}

// HashPassword uses bcrypt
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

func ComparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Provider string   `json:"provider"`
	Roles    []string `json:"roles"`
}

func userInfo(u *model.User, provider string) *UserInfo {
	return &UserInfo{
		ID:       u.ID.String(),
		Email:    u.Email,
		Name:     u.Name,
		Provider: provider,
		Roles:    u.Roles,
	}
}

// LoginLocal checks an email/password pair against the stored bcrypt hash.
func (s *AuthService) LoginLocal(ctx context.Context, email, password, deviceInfo string) (*auth.TokenPair, *UserInfo, error) {
	var u model.User
	err := s.db.NewSelect().Model(&u).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if u.PasswordHash == "" {
		return nil, nil, fmt.Errorf("account not configured for local login")
	}
	if err := ComparePassword(u.PasswordHash, password); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issue(ctx, &u, "local", deviceInfo)
	if err != nil {
		return nil, nil, err
	}
	return pair, userInfo(&u, "local"), nil
}

// ldapUsername strips a trailing @domain, case-insensitively.
func ldapUsername(user, domain string) string {
	if domain == "" {
		return user
	}
	suffix := "@" + strings.ToLower(domain)
	if strings.HasSuffix(strings.ToLower(user), suffix) {
		return user[:len(user)-len(suffix)]
	}
	return user
}

// ldapBindDN is user@DOMAIN when a domain is configured, the bare name otherwise.
func ldapBindDN(user, domain string) string {
	if domain == "" {
		return user
	}
	return fmt.Sprintf("%s@%s", user, strings.ToUpper(domain))
}

// ldapDisplayName picks the best available name from the directory entry.
func ldapDisplayName(display, cn, fallback string) string {
	if display != "" {
		return display
	}
	if cn != "" {
		return cn
	}
	return fallback
}

// LoginLDAP binds as the user, reads their directory entry and provisions a
// local user row on first login.
func (s *AuthService) LoginLDAP(ctx context.Context, ldapUser, ldapPass, deviceInfo string) (*auth.TokenPair, *UserInfo, error) {
	username := ldapUsername(strings.TrimSpace(ldapUser), s.cfg.LDAPUserDomain)
	if username == "" || ldapPass == "" {
		return nil, nil, ErrInvalidCredentials
	}

	ldap.DefaultTimeout = 10 * time.Second
	l, err := ldap.DialURL(s.cfg.LDAPServer)
	if err != nil {
		s.logr.Error("LDAP dial failed", zap.Error(err), zap.String("server", s.cfg.LDAPServer))
		return nil, nil, fmt.Errorf("ldap connection failed")
	}
	defer func() {
		if l != nil {
			if closeErr := l.Close(); closeErr != nil {
				s.logr.Debug("LDAP close error", zap.Error(closeErr))
			}
		}
	}()
	l.SetTimeout(30 * time.Second)

	if err = l.Bind(ldapBindDN(username, s.cfg.LDAPUserDomain), ldapPass); err != nil {
		s.logr.Warn("LDAP bind failed", zap.String("username", username))
		return nil, nil, ErrInvalidCredentials
	}

	searchReq := ldap.NewSearchRequest(
		s.cfg.LDAPBaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		0,
		false,
		fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(username)),
		[]string{"cn", "mail", "displayName"},
		nil,
	)
	sr, err := l.Search(searchReq)
	if err != nil {
		s.logr.Error("LDAP search failed", zap.Error(err), zap.String("username", username))
		return nil, nil, fmt.Errorf("user lookup failed")
	}
	if len(sr.Entries) == 0 {
		s.logr.Warn("LDAP: no entry found", zap.String("username", username))
		return nil, nil, fmt.Errorf("user not found in directory")
	}

	entry := sr.Entries[0]
	mail := strings.ToLower(entry.GetAttributeValue("mail"))
	if mail == "" {
		s.logr.Error("LDAP user missing email", zap.String("username", username))
		return nil, nil, fmt.Errorf("user account missing email")
	}
	fullName := ldapDisplayName(entry.GetAttributeValue("displayName"), entry.GetAttributeValue("cn"), username)

	// Release the directory connection before touching the database.
	l.Close()
	l = nil

	var u model.User
	err = s.db.NewSelect().
		Model(&u).
		Column("id", "email", "provider", "name", "roles", "token_version", "created_at").
		Where("email = ?", mail).
		Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		u = model.User{
			Email:    mail,
			Provider: "ldap",
			Name:     fullName,
			Roles:    []string{"user"},
		}
		if _, err := s.db.NewInsert().Model(&u).Returning("*").Exec(ctx); err != nil {
			s.logr.Error("failed to create user", zap.Error(err), zap.String("email", mail))
			return nil, nil, fmt.Errorf("failed to create user account")
		}
		s.logr.Info("created LDAP user", zap.String("email", mail), zap.String("id", u.ID.String()))
	case err != nil:
		s.logr.Error("database error", zap.Error(err), zap.String("email", mail))
		return nil, nil, fmt.Errorf("database error")
	case u.Provider != "ldap":
		_, _ = s.db.NewUpdate().Model((*model.User)(nil)).
			Set("provider = ?", "ldap").
			Where("id = ?", u.ID).
			Exec(ctx)
	}

	pair, err := s.issue(ctx, &u, "ldap", deviceInfo)
	if err != nil {
		return nil, nil, err
	}
	s.logr.Info("LDAP login successful", zap.String("user_id", u.ID.String()), zap.String("username", username))
	return pair, userInfo(&u, "ldap"), nil
}

// issue stamps last_login_at, signs a token pair and stores the refresh half.
func (s *AuthService) issue(ctx context.Context, u *model.User, method, deviceInfo string) (*auth.TokenPair, error) {
	now := time.Now().UTC()
	_, _ = s.db.NewUpdate().Model((*model.User)(nil)).
		Set("last_login_at = ?", now).
		Where("id = ?", u.ID).
		Exec(ctx)

	pair, err := s.jwt.GenerateTokenPair(u.ID.String(), s.cfg.AccessTokenTTL, s.cfg.RefreshTokenTTL, u.TokenVersion, method, u.Roles)
	if err != nil {
		s.logr.Error("token generation failed", zap.Error(err), zap.String("user_id", u.ID.String()))
		return nil, fmt.Errorf("failed to generate tokens")
	}
	if err := s.storeRefreshToken(ctx, u.ID, pair.RefreshToken, pair.RefreshExp, pair.JTI, deviceInfo); err != nil {
		s.logr.Error("failed to store refresh token", zap.Error(err), zap.String("user_id", u.ID.String()))
		return nil, fmt.Errorf("failed to store session")
	}
	return pair, nil
}

// storeRefreshToken stores the hashed refresh token and keeps at most
// maxSessions live sessions per user, dropping the oldest.
func (s *AuthService) storeRefreshToken(ctx context.Context, userID uuid.UUID, refreshToken string, expiresAt time.Time, jti string, deviceInfo string) error {
	_, _ = s.db.NewDelete().Model((*model.RefreshToken)(nil)).Where("user_id = ? AND expires_at < now()", userID).Exec(ctx)

	var count int
	err := s.db.NewSelect().ColumnExpr("count(*)").Table("refresh_tokens").
		Where("user_id = ? AND revoked = false AND expires_at > now()", userID).
		Scan(ctx, &count)
	if err == nil && count >= maxSessions {
		_, _ = s.db.NewDelete().Model((*model.RefreshToken)(nil)).
			Where("id IN (SELECT id FROM refresh_tokens WHERE user_id = ? AND revoked = false AND expires_at > now() ORDER BY created_at ASC LIMIT ?)", userID, count-maxSessions+1).
			Exec(ctx)
	}

	rt := model.RefreshToken{
		UserID:     userID,
		JTI:        jti,
		TokenHash:  auth.HashToken(refreshToken),
		DeviceInfo: &deviceInfo,
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  expiresAt,
	}
	_, err = s.db.NewInsert().Model(&rt).Exec(ctx)
	return err
}

// Refresh verifies a refresh token, revokes it and issues a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, deviceInfo string) (*auth.TokenPair, error) {
	claims, err := s.jwt.VerifyToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}
	if claims.Kind != auth.RefreshToken {
		return nil, fmt.Errorf("not a refresh token")
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("invalid token jti")
	}

	var rt model.RefreshToken
	err = s.db.NewSelect().Model(&rt).
		Where("jti = ? AND token_hash = ? AND revoked = false AND expires_at > now()", claims.ID, auth.HashToken(refreshToken)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh token not found or revoked")
	}

	var u model.User
	if err := s.db.NewSelect().Model(&u).Where("id = ?", rt.UserID).Scan(ctx); err != nil {
		return nil, fmt.Errorf("user not found")
	}
	if u.TokenVersion != claims.TokenVersion {
		return nil, fmt.Errorf("refresh token revoked")
	}

	_, _ = s.db.NewUpdate().Model((*model.RefreshToken)(nil)).
		Set("revoked = true").
		Where("id = ?", rt.ID).
		Exec(ctx)

	pair, err := s.jwt.GenerateTokenPair(u.ID.String(), s.cfg.AccessTokenTTL, s.cfg.RefreshTokenTTL, u.TokenVersion, claims.AuthMethod, u.Roles)
	if err != nil {
		return nil, err
	}
	if err := s.storeRefreshToken(ctx, u.ID, pair.RefreshToken, pair.RefreshExp, pair.JTI, deviceInfo); err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes the refresh token's session.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.jwt.VerifyToken(refreshToken)
	if err != nil {
		return err
	}
	if claims.ID == "" {
		return fmt.Errorf("invalid jti")
	}
	_, err = s.db.NewUpdate().Model((*model.RefreshToken)(nil)).
		Set("revoked = true").
		Where("jti = ?", claims.ID).
		Exec(ctx)
	return err
}

// CheckTokenVersion reports whether tokenVersion is still the user's current one.
func (s *AuthService) CheckTokenVersion(ctx context.Context, userID string, tokenVersion int) (bool, error) {
	var version int
	err := s.db.NewSelect().Model((*model.User)(nil)).
		Column("token_version").
		Where("id = ?", userID).
		Scan(ctx, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return version == tokenVersion, nil
}
