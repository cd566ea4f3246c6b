package tycon

// Interceptor wraps every member invocation of augmented types.
//
//	func timing(c *tycon.Call, next tycon.Func) (any, error) {
//	    start := time.Now()
//	    res, err := next(c)
//	    log.Printf("%s.%s took %v", c.TypeName(), c.MemberName(), time.Since(start))
//	    return res, err
//	}
//
// The next parameter is the next interceptor in the chain, or the member
// itself. Interceptors can:
//   - Inspect or replace c.Args before calling next
//   - Inspect or replace the result after calling next
//   - Short-circuit by returning an error without calling next
//
// Interceptors run before argument validation, so c.Args holds the raw
// arguments when an interceptor is entered.
type Interceptor func(c *Call, next Func) (any, error)

// chainInterceptors combines multiple interceptors into a single one.
// The first interceptor in the slice is the outer-most one (runs first).
func chainInterceptors(interceptors []Interceptor) Interceptor {
	switch len(interceptors) {
	case 0:
		return nil
	case 1:
		return interceptors[0]
	}
	return func(c *Call, handler Func) (any, error) {
		// Chain: i[0] -> i[1] -> ... -> handler
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			current := interceptors[i]
			next := chain
			chain = func(c *Call) (any, error) {
				return current(c, next)
			}
		}
		return chain(c)
	}
}
