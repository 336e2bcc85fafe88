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
	return s.deps.Login.Sender != nil
}

func (s Service) Login(ctx context.Context, req LoginRequest) LoginResult {
	return RunLogin(ctx, req, s.deps.Login)
}

func (s Service) RefreshExchange(ctx context.Context) RefreshResult {
	return RunRefreshExchange(ctx, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context) LogoutResult {
	return RunLogout(ctx, s.deps.Logout)
}

func (s Service) ForcedLogout(ctx context.Context) LogoutResult {
	return RunForcedLogout(ctx, s.deps.Logout)
}

func (s Service) FetchProfile(ctx context.Context) ProfileResult {
	return RunFetchProfile(ctx, s.deps.Profile)
}

func (s Service) Startup(ctx context.Context) StartupResult {
	return RunStartup(ctx, s.deps.Startup)
}
