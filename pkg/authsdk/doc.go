/*
Package authsdk is a Go client for the tokengate service, plus the wire types
and OAuth2 style errors the service itself writes.

# Logging in

A login is a browser redirect dance with a third-party provider, so the SDK
does not drive it. Once the browser lands on the landing page it holds an
access token (from the ?token= query parameter) and the refresh_token cookie.
Hand both to a Session:

	client := authsdk.NewSDKClient("https://gate.example.com")
	session := client.NewSession(accessToken, refreshToken)

# Sessions

A Session sends the access token as a Bearer header. When the service answers
401 the Session exchanges its refresh token for a new access token once and
retries the request:

	me, err := session.Me(ctx)

	// Drop the refresh token server side.
	err = session.Logout(ctx)

# Errors

Failed calls return *OAuth2Error carrying the HTTP status and the service's
error code:

	var oerr *authsdk.OAuth2Error
	if errors.As(err, &oerr) && oerr.Code == authsdk.ErrorCodeInvalidToken {
		// log in again
	}
*/
package authsdk
