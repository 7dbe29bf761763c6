package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QCMPayloadKey returns the cache key for a question set as shown to students.
func (r *CacheKeyStruct) QCMPayloadKey(qcmID string) string {
	return fmt.Sprintf("qcm:%s:payload", qcmID)
}

// QCMAnswerKey returns the cache key for a question set's correct-choice indexes.
func (r *CacheKeyStruct) QCMAnswerKey(qcmID string) string {
	return fmt.Sprintf("qcm:%s:key", qcmID)
}

// AttemptAnswersKey returns the cache key for the autosaved answers of an attempt.
func (r *CacheKeyStruct) AttemptAnswersKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:answers", attemptID)
}

// SessionMonitorChannel returns the Redis PubSub channel name for a session's live view.
func (r *CacheKeyStruct) SessionMonitorChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:monitor", sessionID)
}

var CacheKey = NewCacheKeyStruct()
