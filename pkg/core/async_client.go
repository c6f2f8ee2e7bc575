package core

import (
	"context"
	"sync"
)

// ResponseResult is the outcome of an asynchronous call returning a Response.
type ResponseResult struct {
	Response *Response
	Error    error
}

// TeachResult is the outcome of TeachAsync.
type TeachResult struct {
	Message string
	Error   error
}

// AsyncClient runs assistant calls in their own goroutines.
//
// Every async method returns a buffered channel that receives exactly one
// result and is then closed. Wait blocks until every started call finished.
//
// Example:
//
//	asyncClient, _ := core.NewAsyncClient(config)
//	defer asyncClient.Close()
//
//	result := <-asyncClient.DispatchAsync(ctx, "what's the weather in Hanoi", "user_001")
//	if result.Error != nil {
//	    log.Fatal(result.Error)
//	}
type AsyncClient struct {
	*Client
	wg sync.WaitGroup
}

// NewAsyncClient creates a new asynchronous client.
func NewAsyncClient(cfg *Config, opts ...ClientOption) (*AsyncClient, error) {
	client, err := NewClient(cfg, opts...)
	if err != nil {
		return nil, err
	}

	return &AsyncClient{
		Client: client,
	}, nil
}

// DispatchAsync dispatches an utterance asynchronously.
func (ac *AsyncClient) DispatchAsync(ctx context.Context, utterance, uid string) <-chan *ResponseResult {
	return ac.respond(func() (*Response, error) {
		return ac.Dispatch(ctx, utterance, uid)
	})
}

// ResolveKnowledgeAsync resolves a knowledge query asynchronously.
func (ac *AsyncClient) ResolveKnowledgeAsync(ctx context.Context, query, uid string) <-chan *ResponseResult {
	return ac.respond(func() (*Response, error) {
		return ac.ResolveKnowledge(ctx, query, uid)
	})
}

// RecordFeedbackAsync resumes a pending clarification asynchronously.
func (ac *AsyncClient) RecordFeedbackAsync(ctx context.Context, uid, topic, text string) <-chan *ResponseResult {
	return ac.respond(func() (*Response, error) {
		return ac.RecordFeedback(ctx, uid, topic, text)
	})
}

// TeachAsync stores topic knowledge asynchronously.
func (ac *AsyncClient) TeachAsync(ctx context.Context, topic, text string) <-chan *TeachResult {
	resultChan := make(chan *TeachResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		msg, err := ac.Teach(ctx, topic, text)
		resultChan <- &TeachResult{
			Message: msg,
			Error:   err,
		}
		close(resultChan)
	}()

	return resultChan
}

func (ac *AsyncClient) respond(call func() (*Response, error)) <-chan *ResponseResult {
	resultChan := make(chan *ResponseResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		resp, err := call()
		resultChan <- &ResponseResult{
			Response: resp,
			Error:    err,
		}
		close(resultChan)
	}()

	return resultChan
}

// Wait blocks until all started asynchronous calls have finished.
func (ac *AsyncClient) Wait() {
	ac.wg.Wait()
}

// Close waits for in-flight calls and then closes the underlying client.
func (ac *AsyncClient) Close() error {
	ac.Wait()
	return ac.Client.Close()
}
