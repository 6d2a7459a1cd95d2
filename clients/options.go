package clients

type ClientOptions struct {
	// RetryInfo holds the retry configuration for the client
	RetryInfo *RetryInfo
	// CircuitBreaker holds the circuit breaker configuration for the client
	CircuitBreaker *CircuitBreaker
	// Auth holds the authentication provider for the client, if any.
	Auth AuthProvider
}
