package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.ParseAccess != nil
}

func (s Service) Login(ctx context.Context, email, password, device string) LoginResult {
	return RunLogin(ctx, email, password, device, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, refreshToken, device string) RefreshResult {
	return RunRefresh(ctx, refreshToken, device, s.deps.Refresh)
}

func (s Service) Validate(ctx context.Context, tokenStr string) ValidateResult {
	return RunValidate(ctx, tokenStr, s.deps.Validate)
}

func (s Service) Logout(ctx context.Context, in LogoutInput) LogoutResult {
	return RunLogout(ctx, in, s.deps.Logout)
}

func (s Service) ForgotPassword(ctx context.Context, email, ip string) ForgotPasswordResult {
	return RunForgotPassword(ctx, email, ip, s.deps.ForgotReset)
}

func (s Service) ResetPassword(ctx context.Context, token, newPassword string) PasswordResetResult {
	return RunPasswordReset(ctx, token, newPassword, s.deps.PasswordReset)
}

func (s Service) Register(ctx context.Context, req RegisterRequest, ip string) RegisterResult {
	return RunRegister(ctx, req, ip, s.deps.Register)
}
