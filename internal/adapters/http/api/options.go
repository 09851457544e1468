package api

// Option configures a Server.
type Option func(*Server)

// WithMaxLeaderboardLimit caps the limit query parameter of leaderboard reads.
func WithMaxLeaderboardLimit(limit int) Option {
	return func(s *Server) {
		if limit > 0 {
			s.maxLimit = limit
		}
	}
}
