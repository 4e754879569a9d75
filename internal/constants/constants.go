package constants

import "time"

const DefaultBackendURL = "http://localhost:8080"
const DefaultRequestTimeout = 5 * time.Second
const DefaultDatabase = ":memory:"
const DefaultListen = "127.0.0.1:8090"

// an override not resolved within this window is dropped and the confirmed value shown again
const DefaultOverrideTTL = 2 * time.Minute

const DefaultRefreshInterval = time.Minute
const DefaultLinkRateLimit = 10.0

// prerequisite power-on commands outlive the request that triggered them
const PrerequisiteTimeout = 10 * time.Second

// backend endpoints
const PathConfig = "/config.json"
const PathInfo = "/info"
const PathOn = "/on"
const PathOff = "/off"
const PathBrightness = "/brightness"
const PathTemperature = "/temperature"
const PathColor = "/color"

const HeaderRequestID = "X-Request-Id"

// event stream
const StreamState = "state"
const EventBulb = "bulb"
