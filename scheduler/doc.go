// Package scheduler resolves annotation lookups against a rate-limited
// remote API and writes every outcome into the annotation cache.
//
// Requests are keyed. While a request for a key is queued or in flight,
// further callers attach a Subscriber to it instead of creating a second
// request, so each key has at most one outstanding fetch.
//
// Draining is strictly FIFO and sequential. Before each fetch the scheduler
// checks the admission budget (RequestBudget starts per WindowDuration,
// counted over a sliding window) and the upstream rate-limit flag; when
// either blocks, it arms a timer for the moment admission becomes possible
// and resumes from there. Nothing queued is ever dropped for budget reasons.
// Between a fetch settling and the next admission check it waits
// InterRequestDelay.
//
// Every settled fetch writes the cache: the content on success, "" on any
// failure, so a persistently failing subject is not refetched on every
// hover. A failure wrapping ErrRateLimited additionally suspends admissions
// for one window. Subscribers always receive a Result; errors never escape
// to callers.
package scheduler
