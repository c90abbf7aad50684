package file

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileOperations defines the file reads the bridge needs at startup.
type FileOperations interface {
	IsFileExists(filePath string) (bool, error)
	ReadSecret(filePath string) (string, error)
	ReadYamlFile(filePath string, v any) error
}

// FileService implements the FileOperations interface using standard file operations.
type FileService struct{}

// NewFileService creates a new instance of FileService.
func NewFileService() *FileService {
	return &FileService{}
}

// IsFileExists checks if the file exists and returns boolean and error
func (fs *FileService) IsFileExists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return false, nil
	}

	// checking err == nil because of permission related error
	return err == nil, err
}

// ReadSecret reads a single-value secret file (e.g. a mounted password),
// trimming surrounding whitespace and the trailing newline.
func (fs *FileService) ReadSecret(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}

	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}

// ReadYamlFile reads and unmarshals YAML data from the given file.
// Unknown keys are rejected so that typos in the config are caught early.
func (fs *FileService) ReadYamlFile(filePath string, v any) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	return decoder.Decode(v)
}
