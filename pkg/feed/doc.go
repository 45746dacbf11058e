// Package feed pulls posts for a set of hashtags from the social feed API.
//
// [Client] speaks the HTTP API:
//
//	GET {base}/hashtags/{tag}              latest posts
//	GET {base}/hashtags/{tag}/bunch?limit  a bounded batch for the initial fill
//	GET {base}/posts/{id}                  author and image of one post
//
// [Feeder] turns those listings into [post.FeedPost] values with images
// already scaled to tile size. Posts already present in the store are
// skipped and every new post is persisted, so a restarted worker sees each
// feed post once.
package feed
