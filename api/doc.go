// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package api defines the wire types of the Parley HTTP API.

The request and response structures here are the JSON bodies exchanged
with /api/v1. Handlers live in api/handlers; this package stays free of
HTTP machinery so clients can import the types without pulling in the
server.

# Authentication

When API keys are configured, requests carry one in the X-API-Key
header:

	X-API-Key: your-api-key

JWT bearer tokens are accepted as an alternative when a signing secret
is configured.

# Base URL

The default base URL is:

	http://localhost:8080
*/
package api
