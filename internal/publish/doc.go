// Package publish uploads a finished build to S3 and announces it on
// Slack.
//
// Objects are written with a content type from their extension and a cache
// policy from their name: index.html and manifest.json are revalidated on
// every request, fingerprinted files are immutable, everything else is
// cached for an hour.
package publish
