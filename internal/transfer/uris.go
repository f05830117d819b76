package transfer

// SourceURIs строит gs:// URI для объектов бакета, сохраняя порядок.
func SourceURIs(bucket string, objects []string) []string {
	uris := make([]string, 0, len(objects))
	for _, obj := range objects {
		uris = append(uris, "gs://"+bucket+"/"+obj)
	}
	return uris
}
