// Package reactive binds the lifecycle of an HTTP call to observable state.
//
// A Controller owns one logical "current call": its value, loading flag,
// error and upload/download progress are observable cells that consumers read
// through read-only views. Run issues the call through a Transport (usually an
// *httpclient.Client with its interceptor pipeline), Abort cancels it, and
// ResetValue restores the initial value.
//
// # Quick Start
//
//	client := httpclient.New(httpclient.WithBaseURL("https://api.example.com"))
//	factory := reactive.NewFactory(client,
//	    reactive.WithTransform(func(_ context.Context, resp *httpclient.Response) (any, error) {
//	        return resp.Data, nil
//	    }),
//	)
//
//	users, run, extra := reactive.Use(factory, reactive.Options[any, map[string]string]{
//	    URL:    source.Value("/users"),
//	    Method: httpclient.MethodGet,
//	    Params: source.Func(func() map[string]string {
//	        return map[string]string{"page": strconv.Itoa(page.Get())}
//	    }),
//	})
//
//	stop := extra.Loading.Subscribe(func(loading bool) { fmt.Println("loading:", loading) })
//	defer stop()
//
//	if _, err := run.Run(ctx); err != nil {
//	    // extra.Error.Get() holds the same error
//	}
//	fmt.Println(users.Get())
//
// # Lifecycle
//
// Hooks run synchronously on the goroutine that called Run, in this order:
//
//	Before -> (loading=true) -> transport -> Transform -> Success | Error -> (loading=false) -> After
//
// Implement Lifecycle directly, embed NopLifecycle to override only a few
// hooks, or use the Hooks func-field adapter.
//
// # Concurrency
//
// Overlapping Runs are neither cancelled nor coalesced: both proceed and the
// observable state reflects whichever finishes last. Abort cancels every call
// bound to the current cancellation token; the next Run allocates a new one.
package reactive
