package clients

// OptionsBuilder assembles a ClientOptions value, wiring in an optional
// CircuitBreaker and RetryInfo policy in the same fluent style used
// throughout the rest of this module's option builders.
type OptionsBuilder struct {
	options *ClientOptions
}

// NewOptionsBuilder returns a builder seeded with empty ClientOptions.
func NewOptionsBuilder() *OptionsBuilder {
	return &OptionsBuilder{options: &ClientOptions{}}
}

// CircuitBreaker configures a CircuitBreaker on the options being built.
func (b *OptionsBuilder) CircuitBreaker(failureThreshold, successThreshold uint64, maxHalfOpen, timeoutSeconds uint32) *OptionsBuilder {
	b.options.CircuitBreaker = NewCircuitBreaker(&BreakerInfo{
		FailureThreshold: failureThreshold,
		SuccessThreshold: successThreshold,
		MaxHalfOpen:      maxHalfOpen,
		Timeout:          timeoutSeconds,
	})
	return b
}

// RetryPolicy configures a retry policy on the options being built.
// waitMs is the base (or fixed) backoff; maxWaitMs only applies when
// exponential is true.
func (b *OptionsBuilder) RetryPolicy(maxRetries, waitMs int, exponential bool, maxWaitMs int) *OptionsBuilder {
	b.options.RetryInfo = &RetryInfo{
		MaxRetries:  maxRetries,
		Wait:        waitMs,
		Exponential: exponential,
		MaxWait:     maxWaitMs,
	}
	return b
}

// Auth sets the authentication provider on the options being built.
func (b *OptionsBuilder) Auth(auth AuthProvider) *OptionsBuilder {
	b.options.Auth = auth
	return b
}

// Build returns the assembled ClientOptions.
func (b *OptionsBuilder) Build() *ClientOptions {
	return b.options
}
