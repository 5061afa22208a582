// Package threads provides a Go client for the Threads content publishing
// API. It covers the OAuth2 authorization-code and long-lived token flow,
// and the container publishing workflow: create a media container, poll its
// processing status, and publish it, including multi-media carousel posts.
//
// Authorization:
//
//	config, err := threads.ConfigFromEnv()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	authURL, state, err := threads.AuthorizationURL(config)
//	// Send the user to authURL and persist state. At the redirect URI:
//	creds, err := threads.CompleteAuthorization(ctx, config, callbackURL, state)
//
// Credentials serialize to JSON, so persisting them is the caller's choice
// of one Marshal call. Long-lived tokens last about 60 days and can be
// refreshed any time before they expire:
//
//	fresh, err := threads.RefreshLongLivedToken(ctx, config, creds)
//
// Posting:
//
//	client, err := threads.NewClient(config, creds)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	postID, err := client.Publish(ctx, "hello threads", nil)
//
// Publish composes the whole workflow, polling media containers internally
// until they finish processing. The individual steps (CreateContainer,
// ContainerStatus, CreateCarouselContainer, PublishContainer) are exported
// for callers who want to control polling cadence themselves.
package threads
