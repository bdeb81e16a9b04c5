package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/speaker-stitch/stitch"
)

// S3API is the subset of the S3 client used for staging chunks.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// TranscribeAPI is the subset of the Transcribe client used for jobs.
type TranscribeAPI interface {
	StartTranscriptionJob(ctx context.Context, in *transcribe.StartTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error)
	GetTranscriptionJob(ctx context.Context, in *transcribe.GetTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.GetTranscriptionJobOutput, error)
}

// TranscribeResult is the JSON document Transcribe writes to S3.
type TranscribeResult struct {
	Results struct {
		Items []TranscribeItem `json:"items"`
	} `json:"results"`
	Status string `json:"status"`
}

// TranscribeItem is one word or punctuation mark.
type TranscribeItem struct {
	StartTime    string `json:"start_time,omitempty"`
	EndTime      string `json:"end_time,omitempty"`
	Type         string `json:"type"`
	SpeakerLabel string `json:"speaker_label,omitempty"`
	Alternatives []struct {
		Confidence string `json:"confidence"`
		Content    string `json:"content"`
	} `json:"alternatives"`
}

// Transcribe diarizes chunks with Amazon Transcribe speaker labels. Chunk
// audio is staged in Bucket under Prefix/JobPrefix.
type Transcribe struct {
	S3           S3API
	Client       TranscribeAPI
	Bucket       string
	Prefix       string
	JobPrefix    string
	LanguageCode string
	MaxSpeakers  int
	PollInterval time.Duration
	Log          logrus.FieldLogger
}

// NewTranscribe loads the default AWS configuration for region.
func NewTranscribe(ctx context.Context, region string) (*Transcribe, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Transcribe{
		S3:           s3.NewFromConfig(cfg),
		Client:       transcribe.NewFromConfig(cfg),
		LanguageCode: "en-US",
		MaxSpeakers:  4,
		PollInterval: 5 * time.Second,
	}, nil
}

func (t *Transcribe) logger() logrus.FieldLogger {
	if t.Log == nil {
		return logrus.StandardLogger()
	}
	return t.Log
}

// Diarize uploads the chunk, runs a speaker-labelled job and converts the
// result into entries.
func (t *Transcribe) Diarize(ctx context.Context, c stitch.Chunk, wavPath string) ([]stitch.Entry, error) {
	base := path.Join(t.Prefix, t.JobPrefix, fmt.Sprintf("chunk_%04d", c.Index))
	mediaKey := base + ".wav"
	outKey := base + ".json"
	jobName := fmt.Sprintf("%s-%04d", strings.ReplaceAll(t.JobPrefix, "/", "-"), c.Index)

	if err := t.upload(ctx, mediaKey, wavPath); err != nil {
		return nil, fmt.Errorf("upload chunk %d: %w", c.Index, err)
	}
	if err := t.start(ctx, jobName, mediaKey, outKey); err != nil {
		return nil, fmt.Errorf("start job %s: %w", jobName, err)
	}
	if err := t.wait(ctx, jobName); err != nil {
		return nil, err
	}
	res, err := t.fetch(ctx, outKey)
	if err != nil {
		return nil, fmt.Errorf("fetch result %s: %w", outKey, err)
	}
	return ItemsToEntries(res.Results.Items)
}

func (t *Transcribe) upload(ctx context.Context, key, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = t.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &t.Bucket,
		Key:    &key,
		Body:   f,
	})
	return err
}

func (t *Transcribe) start(ctx context.Context, jobName, mediaKey, outKey string) error {
	mediaURI := fmt.Sprintf("s3://%s/%s", t.Bucket, mediaKey)
	input := &transcribe.StartTranscriptionJobInput{
		TranscriptionJobName: &jobName,
		LanguageCode:         types.LanguageCode(t.LanguageCode),
		MediaFormat:          types.MediaFormatWav,
		Media:                &types.Media{MediaFileUri: &mediaURI},
		OutputBucketName:     &t.Bucket,
		OutputKey:            &outKey,
		Settings: &types.Settings{
			ShowSpeakerLabels: aws.Bool(true),
			MaxSpeakerLabels:  aws.Int32(int32(clampSpeakers(t.MaxSpeakers))),
		},
	}
	_, err := t.Client.StartTranscriptionJob(ctx, input)
	if isConflict(err) {
		t.logger().WithField("job", jobName).Info("transcription job already exists, polling it")
		return nil
	}
	return err
}

func (t *Transcribe) wait(ctx context.Context, jobName string) error {
	interval := t.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		out, err := t.Client.GetTranscriptionJob(ctx, &transcribe.GetTranscriptionJobInput{
			TranscriptionJobName: &jobName,
		})
		if err != nil {
			return fmt.Errorf("retrieving transcription job status: %w", err)
		}
		if out.TranscriptionJob == nil {
			return fmt.Errorf("transcription job %s: empty status response", jobName)
		}
		status := out.TranscriptionJob.TranscriptionJobStatus
		t.logger().WithFields(logrus.Fields{"job": jobName, "status": status}).Debug("job status")
		switch status {
		case types.TranscriptionJobStatusCompleted:
			return nil
		case types.TranscriptionJobStatusFailed:
			reason := "unknown"
			if out.TranscriptionJob.FailureReason != nil {
				reason = *out.TranscriptionJob.FailureReason
			}
			return fmt.Errorf("transcription job %s failed: %s", jobName, reason)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *Transcribe) fetch(ctx context.Context, key string) (*TranscribeResult, error) {
	out, err := t.S3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &t.Bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	var result TranscribeResult
	if err := json.NewDecoder(out.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ItemsToEntries converts Transcribe items to entries. Punctuation is
// appended to the preceding word.
func ItemsToEntries(items []TranscribeItem) ([]stitch.Entry, error) {
	var out []stitch.Entry
	for i, it := range items {
		content := ""
		if len(it.Alternatives) > 0 {
			content = it.Alternatives[0].Content
		}
		switch it.Type {
		case "punctuation":
			if n := len(out); n > 0 {
				out[n-1].Text += content
			}
		case "pronunciation":
			start, err1 := strconv.ParseFloat(it.StartTime, 64)
			end, err2 := strconv.ParseFloat(it.EndTime, 64)
			if err := errors.Join(err1, err2); err != nil {
				return nil, fmt.Errorf("%w: item %d: %v", stitch.ErrMalformedEntry, i, err)
			}
			out = append(out, stitch.Entry{SpeakerLabel: it.SpeakerLabel, Text: content, StartOffset: start, EndOffset: end})
		default:
			return nil, fmt.Errorf("%w: item %d has type %q", stitch.ErrMalformedEntry, i, it.Type)
		}
	}
	return out, nil
}

// Transcribe accepts between 2 and 30 speaker labels.
func clampSpeakers(n int) int {
	return max(2, min(30, n))
}

func isConflict(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ConflictException"
	}
	return false
}
