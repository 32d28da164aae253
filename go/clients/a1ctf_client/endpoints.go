package a1ctf_client

const (
	// API Endpoints, formatted with the game id (and a challenge or judge id)
	GameInfoEndpoint    = "/api/game/%d"
	NoticesEndpoint     = "/api/game/%d/notices"
	ChallengesEndpoint  = "/api/game/%d/challenges"
	SubmitFlagEndpoint  = "/api/game/%d/flag/%d"
	JudgeResultEndpoint = "/api/game/%d/flag/%s"
	ScoreboardEndpoint  = "/api/game/%d/scoreboard"

	// Push hub, keyed by the game query parameter
	HubEndpoint  = "/api/hub"
	HubGameParam = "game"

	// Headers
	AuthorizationHeader = "Authorization"
	CookieHeader        = "Cookie"
	JsonHeader          = "Accept"
	JsonContentType     = "application/json"
)
