package feed

import (
	"fmt"
	"time"
)

// The mock dataset is fully deterministic: fixed ids, fixed ordering, fixed
// timestamps, sliced the same way the real feed paginates. Eighteen posts in
// total so at least two full pages exist at the default limit.
var mockBase = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func mockAuthor() Author {
	return Author{
		ID:     "user1",
		Name:   "Yusif Mamedov",
		Avatar: "https://xsgames.co/randomusers/avatar.php?g=male",
	}
}

func mockPosts() []Post {
	posts := []Post{
		{
			ID:     "post1",
			Text:   "This is a demo post shown because the app is running with the mock token.",
			Author: mockAuthor(),
			Photos: []Photo{
				{ID: "photo1", URL: "https://picsum.photos/800/600", Width: 800, Height: 600},
			},
			CreatedAt: mockBase.Format(time.RFC3339),
			UpdatedAt: mockBase.Format(time.RFC3339),
		},
		{
			ID:   "post2",
			Text: "A second demo post with a different image. Pagination and refresh both work here.",
			Author: Author{
				ID:     "user2",
				Name:   "Test User",
				Avatar: "https://xsgames.co/randomusers/avatar.php?g=female",
			},
			Photos: []Photo{
				{ID: "photo2", URL: "https://picsum.photos/800/400", Width: 800, Height: 400},
			},
			CreatedAt: mockBase.Add(-time.Hour).Format(time.RFC3339),
			UpdatedAt: mockBase.Add(-time.Hour).Format(time.RFC3339),
		},
		{
			ID:   "post3",
			Text: "A text-only post, no images attached.",
			Author: Author{
				ID:   "user3",
				Name: "LO User",
			},
			CreatedAt: mockBase.Add(-2 * time.Hour).Format(time.RFC3339),
			UpdatedAt: mockBase.Add(-2 * time.Hour).Format(time.RFC3339),
		},
	}

	for i := 0; i < 15; i++ {
		ts := mockBase.Add(-time.Duration(i) * 15 * time.Minute).Format(time.RFC3339)
		posts = append(posts, Post{
			ID:        fmt.Sprintf("post%d", i+4),
			Text:      fmt.Sprintf("Generated post #%d for pagination testing.", i+1),
			Author:    mockAuthor(),
			CreatedAt: ts,
			UpdatedAt: ts,
		})
	}

	return posts
}

func mockPage(page, limit int) *Page {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	posts := mockPosts()

	start := (page - 1) * limit
	end := start + limit

	if start > len(posts) {
		start = len(posts)
	}
	if end > len(posts) {
		end = len(posts)
	}

	return &Page{
		Items:   posts[start:end],
		HasMore: end < len(posts),
		Total:   len(posts),
		Page:    page,
		Limit:   limit,
	}
}
