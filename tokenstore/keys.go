package tokenstore

// Key names one persisted credential entry.
type Key string

const (
	KeyAccessToken  Key = "accessToken"
	KeyRefreshToken Key = "refreshToken"
	KeyDeviceID     Key = "deviceId"
	KeyUserData     Key = "userData"
)

// AllKeys lists every entry owned by the store, in clearing order.
var AllKeys = []Key{KeyAccessToken, KeyRefreshToken, KeyDeviceID, KeyUserData}

// TokenPair holds both token halves. An empty string means absent.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Empty reports whether neither half is present.
func (p TokenPair) Empty() bool { return p.AccessToken == "" && p.RefreshToken == "" }
