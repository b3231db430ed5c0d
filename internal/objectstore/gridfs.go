package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSStore stores media in a MongoDB GridFS bucket. Refs are the hex form
// of the GridFS file ObjectID.
type GridFSStore struct {
	bucket *gridfs.Bucket
	logger *slog.Logger
}

// NewGridFSStore creates a store on the named bucket of db.
func NewGridFSStore(db *mongo.Database, bucketName string, logger *slog.Logger) (*GridFSStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket: %w", err)
	}

	return &GridFSStore{
		bucket: bucket,
		logger: logger,
	}, nil
}

func (s *GridFSStore) Put(ctx context.Context, r io.Reader, contentType string) (string, error) {
	id := primitive.NewObjectID()

	uploadOpts := options.GridFSUpload().
		SetMetadata(bson.M{"contentType": contentType})

	stream, err := s.bucket.OpenUploadStreamWithID(id, id.Hex(), uploadOpts)
	if err != nil {
		return "", fmt.Errorf("failed to open upload stream: %w", err)
	}

	written, err := io.Copy(stream, r)
	if err != nil {
		stream.Close()
		_ = s.bucket.Delete(id)
		return "", fmt.Errorf("failed to write object: %w", err)
	}

	if err := stream.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object: %w", err)
	}

	s.logger.Debug("Object stored",
		slog.String("ref", id.Hex()),
		slog.Int64("bytes", written),
		slog.String("content_type", contentType),
	)

	return id.Hex(), nil
}

func (s *GridFSStore) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		// A ref that is not a valid ObjectID can never exist here.
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}

	stream, err := s.bucket.OpenDownloadStream(id)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to open download stream: %w", err)
	}

	return stream, nil
}

func (s *GridFSStore) Exists(ctx context.Context, ref string) (bool, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return false, nil
	}

	count, err := s.bucket.GetFilesCollection().CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}

	return count > 0, nil
}
