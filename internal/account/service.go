// Package account はアカウントのライフサイクル（登録、メール認証、ログイン、
// パスワードリセット、プロフィール更新、退会）を状態機械として管理する。
//
// 状態遷移:
//
//	Unverified --(正しく期限内のOTP)--> Verified
//	Verified: Active --(リセットOTP検証)--> ResetPending --(リセット実行)--> Active
//
// 一度Verifiedになったアカウントが未認証に戻ることはない。
package account

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/smartkhata/internal/model"
	"github.com/hitoshi/smartkhata/internal/notify"
	"github.com/hitoshi/smartkhata/internal/repository"
	"github.com/hitoshi/smartkhata/internal/security"
	"github.com/hitoshi/smartkhata/internal/validate"
)

// DefaultOTPTTL はOTPチャレンジの有効期間。
const DefaultOTPTTL = 15 * time.Minute

// PasswordHasher はパスワードのハッシュ化と照合を行う。
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) (bool, error)
}

// TokenIssuer はアカウントIDからセッショントークンを発行する。
type TokenIssuer interface {
	Issue(accountID string) (string, error)
}

// PhoneNormalizer は電話番号を検証してE.164形式に正規化する。
type PhoneNormalizer interface {
	Normalize(raw string) (string, error)
}

// EventRecorder は認証イベントと通知結果を記録する。
type EventRecorder interface {
	RecordAuthEvent(operation, outcome string)
	RecordNotification(purpose string, ok bool)
}

// Deps はServiceの依存関係。Eventsは省略可能。
type Deps struct {
	Accounts repository.AccountRepository
	Hasher   PasswordHasher
	Tokens   TokenIssuer
	Notifier notify.Sender
	Phones   PhoneNormalizer
	Events   EventRecorder
}

// ServiceConfig はアカウントサービスの設定。
type ServiceConfig struct {
	OTPTTL time.Duration
}

// Service はアカウントライフサイクルのビジネスロジックを提供する。
type Service struct {
	accounts repository.AccountRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	notifier notify.Sender
	phones   PhoneNormalizer
	events   EventRecorder

	otpTTL      time.Duration
	generateOTP func() (string, error)
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(deps Deps, cfg ServiceConfig) *Service {
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = DefaultOTPTTL
	}
	return &Service{
		accounts:    deps.Accounts,
		hasher:      deps.Hasher,
		tokens:      deps.Tokens,
		notifier:    deps.Notifier,
		phones:      deps.Phones,
		events:      deps.Events,
		otpTTL:      cfg.OTPTTL,
		generateOTP: security.GenerateOTP,
		now:         time.Now,
	}
}

// RegisterInput は新規登録の入力。
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

// UpdateProfileInput はプロフィール更新の入力。nilの項目は変更しない。
type UpdateProfileInput struct {
	Name            *string
	Phone           *string
	CurrentPassword string
}

// AuthResult は認証を伴う操作の結果。Tokenはクッキーに設定するセッショントークン。
type AuthResult struct {
	Account *model.Account
	Token   string
}

// ResetAuthorization はリセットOTP検証後に返すリセット受付情報。
type ResetAuthorization struct {
	AccountID string    `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	ExpiresAt time.Time `json:"otpExpiresAt"`
}

// Register は未認証アカウントを作成し、OTPを発行してセッショントークンを返す。
// OTP通知の失敗は登録を妨げない。再送信で回復できる。
func (s *Service) Register(ctx context.Context, in RegisterInput) (res *AuthResult, err error) {
	defer s.record("register", &err)

	// 1. 入力の正規化と検証（ストレージアクセス前）
	name := strings.TrimSpace(in.Name)
	email := validate.NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" || strings.TrimSpace(in.Phone) == "" {
		return nil, model.NewInvalidInputError("All fields are required")
	}
	if err := validate.Name(name); err != nil {
		return nil, model.NewInvalidInputError(err.Error())
	}
	if err := validate.Email(email); err != nil {
		return nil, model.NewInvalidInputError(err.Error())
	}
	if err := validate.Password(in.Password); err != nil {
		return nil, model.NewInvalidInputError(err.Error())
	}
	phone, err := s.phones.Normalize(in.Phone)
	if err != nil {
		return nil, model.NewInvalidInputError(err.Error())
	}

	// 2. メールアドレスの重複確認
	existing, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewConflictError()
	}

	// 3. アカウント作成
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	challenge, err := s.newChallenge(now)
	if err != nil {
		return nil, err
	}
	account := &model.Account{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		IsVerified:   false,
		Challenge:    challenge,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewConflictError()
		}
		return nil, fmt.Errorf("アカウントの作成に失敗しました: %w", err)
	}

	slog.Info("アカウントを登録しました",
		slog.String("user_id", account.ID),
	)

	// 4. OTP通知（ベストエフォート）
	if err := s.sendOTP(ctx, account, notify.PurposeVerifyEmail); err != nil {
		slog.Warn("登録時のOTP通知に失敗しました。再送信で回復可能です",
			slog.String("user_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	// 5. セッショントークン発行
	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, fmt.Errorf("トークンの発行に失敗しました: %w", err)
	}

	return &AuthResult{Account: account, Token: token}, nil
}

// VerifyEmail は登録時のOTPを検証してアカウントを認証済みにする。
// OTPが一致しない場合は状態を変更しない。
func (s *Service) VerifyEmail(ctx context.Context, email, otp string) (res *AuthResult, err error) {
	defer s.record("verify_email", &err)

	email = validate.NormalizeEmail(email)
	otp = strings.TrimSpace(otp)
	if email == "" || otp == "" {
		return nil, model.NewInvalidInputError("Email and OTP are required")
	}

	account, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account.IsVerified {
		return nil, model.NewAlreadyVerifiedError()
	}

	now := s.now()
	if err := checkChallenge(account.Challenge, otp, now); err != nil {
		return nil, err
	}

	account.IsVerified = true
	account.Challenge = nil
	account.UpdatedAt = now
	if err := s.update(ctx, account); err != nil {
		return nil, err
	}

	slog.Info("メールアドレスを認証しました",
		slog.String("user_id", account.ID),
	)

	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, fmt.Errorf("トークンの発行に失敗しました: %w", err)
	}
	return &AuthResult{Account: account, Token: token}, nil
}

// Login はパスワードを照合してセッショントークンを発行する。
// 未認証アカウントはパスワードの正誤に関わらずNotVerifiedとなる。
func (s *Service) Login(ctx context.Context, email, password string) (res *AuthResult, err error) {
	defer s.record("login", &err)

	email = validate.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, model.NewInvalidInputError("Email and password are required")
	}

	account, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !account.IsVerified {
		return nil, model.NewNotVerifiedError()
	}
	if err := s.checkPassword(password, account.PasswordHash); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, fmt.Errorf("トークンの発行に失敗しました: %w", err)
	}
	return &AuthResult{Account: account, Token: token}, nil
}

// Logout はログアウトを記録する。トークンはサーバー側に状態を持たないため、
// 失効はクッキーの削除によってのみ行われる。
func (s *Service) Logout(ctx context.Context, accountID string) {
	var err error
	s.record("logout", &err)
	if accountID != "" {
		slog.Info("ログアウトしました",
			slog.String("user_id", accountID),
		)
	}
}

// GetAccount はセッションのアカウントを返す。
// トークン発行後に削除されたアカウントはNotFoundとなる。
func (s *Service) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	if account == nil {
		return nil, model.NewAccountNotFoundError()
	}
	return account, nil
}

// RequestPasswordReset は認証済みアカウントにパスワードリセット用OTPを発行して通知する。
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (err error) {
	defer s.record("forgot_password_request", &err)
	return s.issueResetChallenge(ctx, email)
}

// ResendPasswordResetOTP はパスワードリセット用OTPを再発行する。
// 初回リクエストと同じく認証済みアカウントのみ受け付ける。
func (s *Service) ResendPasswordResetOTP(ctx context.Context, email string) (err error) {
	defer s.record("forgot_password_resend", &err)
	return s.issueResetChallenge(ctx, email)
}

func (s *Service) issueResetChallenge(ctx context.Context, email string) error {
	email = validate.NormalizeEmail(email)
	if email == "" {
		return model.NewInvalidInputError("Email is required")
	}

	account, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !account.IsVerified {
		return model.NewNotVerifiedError()
	}

	return s.reissueChallenge(ctx, account, notify.PurposeResetPassword)
}

// VerifyPasswordResetOTP はリセット用OTPを検証し、リセット受付期間を開く。
// 受付期間は検証したチャレンジの有効期限までとなる。認証状態は変更しない。
func (s *Service) VerifyPasswordResetOTP(ctx context.Context, email, otp string) (res *ResetAuthorization, err error) {
	defer s.record("forgot_password_verify", &err)

	email = validate.NormalizeEmail(email)
	otp = strings.TrimSpace(otp)
	if email == "" || otp == "" {
		return nil, model.NewInvalidInputError("Email and OTP are required")
	}

	account, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !account.IsVerified {
		return nil, model.NewNotVerifiedError()
	}

	now := s.now()
	if err := checkChallenge(account.Challenge, otp, now); err != nil {
		return nil, err
	}

	until := account.Challenge.ExpiresAt
	account.Challenge = nil
	account.ResetAuthorizedUntil = &until
	account.UpdatedAt = now
	if err := s.update(ctx, account); err != nil {
		return nil, err
	}

	return &ResetAuthorization{
		AccountID: account.ID,
		Email:     account.Email,
		Name:      account.Name,
		Phone:     account.Phone,
		ExpiresAt: until,
	}, nil
}

// ResetPassword はリセット受付期間中のアカウントのパスワードを置き換える。
// 新旧パスワードの不一致はストレージにアクセスする前に検出する。
func (s *Service) ResetPassword(ctx context.Context, email, newPassword, confirmPassword string) (err error) {
	defer s.record("reset_password", &err)

	email = validate.NormalizeEmail(email)
	if email == "" || newPassword == "" || confirmPassword == "" {
		return model.NewInvalidInputError("Email, new password and confirm password are required")
	}
	if newPassword != confirmPassword {
		return model.NewInvalidInputError("Passwords do not match")
	}
	if err := validate.Password(newPassword); err != nil {
		return model.NewInvalidInputError(err.Error())
	}

	account, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}

	now := s.now()
	if !account.ResetPending(now) {
		return model.NewResetNotAuthorizedError()
	}

	if err := s.replacePassword(ctx, account, newPassword, now); err != nil {
		return err
	}

	slog.Info("パスワードをリセットしました",
		slog.String("user_id", account.ID),
	)
	return nil
}

// ChangePassword は現在のパスワードを確認してから新しいパスワードに置き換える。
func (s *Service) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword, confirmPassword string) (err error) {
	defer s.record("change_password", &err)

	if oldPassword == "" || newPassword == "" || confirmPassword == "" {
		return model.NewInvalidInputError("Old password, new password and confirm password are required")
	}
	if newPassword != confirmPassword {
		return model.NewInvalidInputError("Passwords do not match")
	}
	if err := validate.Password(newPassword); err != nil {
		return model.NewInvalidInputError(err.Error())
	}

	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.checkPassword(oldPassword, account.PasswordHash); err != nil {
		return err
	}

	if err := s.replacePassword(ctx, account, newPassword, s.now()); err != nil {
		return err
	}

	slog.Info("パスワードを変更しました",
		slog.String("user_id", account.ID),
	)
	return nil
}

// ResendVerificationOTP は未認証アカウントに登録確認用OTPを再発行する。
func (s *Service) ResendVerificationOTP(ctx context.Context, email string) (err error) {
	defer s.record("resend_otp", &err)

	email = validate.NormalizeEmail(email)
	if email == "" {
		return model.NewInvalidInputError("Email is required")
	}

	account, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if account.IsVerified {
		return model.NewAlreadyVerifiedError()
	}

	return s.reissueChallenge(ctx, account, notify.PurposeVerifyEmail)
}

// UpdateProfile は現在のパスワードを確認して表示名・電話番号を部分更新する。
// 値は登録時と同じ規則で検証する。
func (s *Service) UpdateProfile(ctx context.Context, accountID string, in UpdateProfileInput) (res *model.Account, err error) {
	defer s.record("update_profile", &err)

	// 1. 入力検証（ストレージアクセス前）
	if in.CurrentPassword == "" {
		return nil, model.NewInvalidInputError("Current password is required")
	}
	var name, phone string
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		if err := validate.Name(name); err != nil {
			return nil, model.NewInvalidInputError(err.Error())
		}
	}
	if in.Phone != nil {
		phone, err = s.phones.Normalize(*in.Phone)
		if err != nil {
			return nil, model.NewInvalidInputError(err.Error())
		}
	}

	// 2. アカウント状態とパスワードの確認
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.IsVerified {
		return nil, model.NewNotVerifiedError()
	}
	if err := s.checkPassword(in.CurrentPassword, account.PasswordHash); err != nil {
		return nil, err
	}

	// 3. 指定された項目のみ更新
	if in.Name != nil {
		account.Name = name
	}
	if in.Phone != nil {
		account.Phone = phone
	}
	account.UpdatedAt = s.now()
	if err := s.update(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// DeleteAccount は現在のパスワードを確認してアカウントを物理削除する。
// 関連する取引も削除される。
func (s *Service) DeleteAccount(ctx context.Context, accountID, currentPassword string) (err error) {
	defer s.record("delete_account", &err)

	if currentPassword == "" {
		return model.NewInvalidInputError("Current password is required")
	}

	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.IsVerified {
		return model.NewNotVerifiedError()
	}
	if err := s.checkPassword(currentPassword, account.PasswordHash); err != nil {
		return err
	}

	if err := s.accounts.DeleteByID(ctx, account.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewAccountNotFoundError()
		}
		return fmt.Errorf("アカウントの削除に失敗しました: %w", err)
	}

	slog.Info("アカウントを削除しました",
		slog.String("user_id", account.ID),
	)
	return nil
}

// --- 内部ヘルパー ---

// checkChallenge はOTPチャレンジを照合する。
// 不一致（チャレンジなしを含む）はInvalidOtp、一致しても期限切れならOtpExpired。
func checkChallenge(c *model.OTPChallenge, otp string, now time.Time) error {
	if c == nil || subtle.ConstantTimeCompare([]byte(c.Code), []byte(otp)) != 1 {
		return model.NewInvalidOTPError()
	}
	if c.Expired(now) {
		return model.NewOTPExpiredError()
	}
	return nil
}

func (s *Service) newChallenge(now time.Time) (*model.OTPChallenge, error) {
	code, err := s.generateOTP()
	if err != nil {
		return nil, fmt.Errorf("OTPの生成に失敗しました: %w", err)
	}
	return &model.OTPChallenge{Code: code, ExpiresAt: now.Add(s.otpTTL)}, nil
}

// reissueChallenge は既存のチャレンジを新しいもので上書きし、通知する。
// 開いているリセット受付期間も閉じる。通知の失敗はエラーとして返す。
func (s *Service) reissueChallenge(ctx context.Context, account *model.Account, purpose notify.Purpose) error {
	now := s.now()
	challenge, err := s.newChallenge(now)
	if err != nil {
		return err
	}
	account.Challenge = challenge
	account.ResetAuthorizedUntil = nil
	account.UpdatedAt = now
	if err := s.update(ctx, account); err != nil {
		return err
	}

	if err := s.sendOTP(ctx, account, purpose); err != nil {
		return fmt.Errorf("OTP通知の送信に失敗しました: %w", err)
	}
	return nil
}

func (s *Service) sendOTP(ctx context.Context, account *model.Account, purpose notify.Purpose) error {
	err := s.notifier.SendOTP(ctx, notify.OTPMessage{
		Email:     account.Email,
		Name:      account.Name,
		Code:      account.Challenge.Code,
		Purpose:   purpose,
		ExpiresIn: account.Challenge.ExpiresAt.Sub(s.now()),
	})
	if s.events != nil {
		s.events.RecordNotification(string(purpose), err == nil)
	}
	return err
}

// replacePassword はハッシュを置き換え、OTPチャレンジとリセット受付期間を閉じる。
func (s *Service) replacePassword(ctx context.Context, account *model.Account, password string, now time.Time) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	account.PasswordHash = hash
	account.Challenge = nil
	account.ResetAuthorizedUntil = nil
	account.UpdatedAt = now
	return s.update(ctx, account)
}

func (s *Service) checkPassword(plaintext, hash string) error {
	ok, err := s.hasher.Verify(plaintext, hash)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewInvalidCredentialsError()
	}
	return nil
}

func (s *Service) findByEmail(ctx context.Context, email string) (*model.Account, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	if account == nil {
		return nil, model.NewAccountNotFoundError()
	}
	return account, nil
}

func (s *Service) update(ctx context.Context, account *model.Account) error {
	if err := s.accounts.Update(ctx, account); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewAccountNotFoundError()
		}
		return fmt.Errorf("アカウントの更新に失敗しました: %w", err)
	}
	return nil
}

// record は操作結果をEventRecorderに記録する。
// 結果は成功なら"success"、APIErrorならそのコード、それ以外は"error"。
func (s *Service) record(operation string, errp *error) {
	if s.events == nil {
		return
	}
	outcome := "success"
	if err := *errp; err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			outcome = apiErr.Code
		} else {
			outcome = "error"
		}
	}
	s.events.RecordAuthEvent(operation, outcome)
}
